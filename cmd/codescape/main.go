// Command codescape serves the live force-directed layout of a code graph.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"codescape/internal/config"
)

var version = "0.3.0"

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "codescape",
		Short:   "codescape - live 3-D layout of code graphs",
		Long:    Brand.Sprint("codescape") + " lays out function, variable, module and vulnerability graphs\n" + Subtle.Sprint("and streams the simulation to a presentation layer"),
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("codescape {{ .Version }}\n")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search $CODESCAPE_CONFIG, ./codescape.yaml, XDG)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(),
		layoutCmd(),
		analyzeCmd(),
	)
	return cmd
}

func loadConfig() error {
	var (
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
		cfg.Clamp()
	}
	logger = cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	for _, adj := range cfg.Adjustments {
		logger.Warn("config value clamped", "adjustment", adj)
	}
	return nil
}
