package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codescape/internal/analysis"
)

func analyzeCmd() *cobra.Command {
	var (
		url        string
		entrypoint string
	)
	opts := &settleOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [project-dir]",
		Short: "Request an analysis and lay out the result",
		Long: `Ask the analysis service for a project's graph, then lay it out headless.

  codescape analyze ./myproject
  codescape analyze ./myproject --entrypoint main.py -o graph.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url != "" {
				cfg.Analysis.URL = url
			}
			req := analysis.Request{
				ProjectDir: cfg.Analysis.ProjectDir,
				Entrypoint: cfg.Analysis.Entrypoint,
			}
			if len(args) == 1 {
				req.ProjectDir = args[0]
			}
			if entrypoint != "" {
				req.Entrypoint = entrypoint
			}
			opts.scope = req.ProjectDir

			client := analysis.NewClient(cfg.Analysis.URL, analysis.Options{
				Timeout: cfg.Analysis.Timeout.Duration(),
				Logger:  logger,
			})
			p, err := client.Analyze(cmd.Context(), req)
			if err != nil {
				var needs *analysis.NeedsEntrypointError
				if errors.As(err, &needs) && len(needs.Options) > 0 {
					fmt.Fprintf(os.Stderr, "%s %s\n", Bad.Sprint("error:"), needs.Message)
					for _, o := range needs.Options {
						fmt.Fprintf(os.Stderr, "  --entrypoint %s\n", o)
					}
				}
				return err
			}
			return settle(cmd.Context(), p, filepath.Base(req.ProjectDir), opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&url, "analysis-url", "", "analysis service base URL")
	cmd.Flags().StringVar(&entrypoint, "entrypoint", "", "entrypoint file for projects with several candidates")
	return cmd
}
