package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"codescape/internal/codec"
	"codescape/internal/domain"
	"codescape/internal/layout"
	"codescape/internal/loader"
	"codescape/internal/repository/sqlite"
)

// settleOptions control a headless layout run
type settleOptions struct {
	maxTicks int
	format   string
	out      string
	pins     bool
	scope    string
}

func (o *settleOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.maxTicks, "max-ticks", 1000, "stop after this many ticks even if not converged")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "snapshot format: json or yaml (default: from --out, else json)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the snapshot to a file instead of stdout")
	cmd.Flags().BoolVar(&o.pins, "pins", false, "apply pins saved in the database")
}

func layoutCmd() *cobra.Command {
	opts := &settleOptions{}

	cmd := &cobra.Command{
		Use:   "layout <payload>",
		Short: "Lay out a payload file and print the final positions",
		Long: `Run the simulation headless until it converges and export a snapshot.

  codescape layout ast.json
  codescape layout ast.yaml -o positions.yaml --max-ticks 300`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			if opts.scope == "" {
				opts.scope = cfg.Analysis.ProjectDir
			}
			return settle(cmd.Context(), p, filepath.Base(args[0]), opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.scope, "scope", "", "pin scope (default: analysis.project_dir)")
	return cmd
}

// settle builds the graph, runs it to convergence and exports the result
func settle(ctx context.Context, p *domain.Payload, title string, opts *settleOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	format := opts.format
	if format == "" {
		format = "json"
		if opts.out != "" {
			format = loader.Format(opts.out)
		}
	}
	exporter, err := codec.ExporterFor(strings.ToLower(format))
	if err != nil {
		return err
	}

	g, report := domain.Build(p)
	engine := layout.New(g, cfg.Layout.Params)

	if opts.pins {
		pins, err := loadPins(ctx, opts.scope)
		if err != nil {
			return err
		}
		applied := 0
		for id, pos := range pins {
			if engine.Fix(id, pos) {
				applied++
			}
		}
		logger.Debug("pins applied", "scope", opts.scope, "applied", applied, "stored", len(pins))
	}

	ticks := engine.Run(opts.maxTicks)
	logger.Debug("layout finished", "ticks", ticks, "alpha", engine.Alpha(), "converged", engine.Converged())

	fixed := make(map[string]bool)
	for _, n := range engine.Snapshot() {
		if n.Fixed {
			fixed[n.ID] = true
		}
	}
	snap := codec.NewSnapshot(g, engine.Positions(), fixed)
	snap.Converged = engine.Converged()
	snap.Alpha = engine.Alpha()

	var w io.Writer = os.Stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}
	if err := exporter.Export(snap, w); err != nil {
		return err
	}

	printSummary(os.Stderr, title, g, report)
	status := Good.Sprintf("converged after %d ticks", ticks)
	if !engine.Converged() {
		status = Warn.Sprintf("stopped after %d ticks (alpha %.4f)", ticks, engine.Alpha())
	}
	fmt.Fprintf(os.Stderr, "  %s\n", status)
	if opts.out != "" {
		fmt.Fprintf(os.Stderr, "  %s %s\n", Subtle.Sprint("wrote"), opts.out)
	}
	return nil
}

func loadPins(ctx context.Context, scope string) (map[string]domain.Vec3, error) {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.Pins(ctx, scope)
}
