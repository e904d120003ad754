package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/anneal"
	"github.com/hupe1980/anneal/internal/config"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anneal",
		Short: "Simulated-annealing clustering of numeric tables",
		Long: `anneal partitions the rows of a delimited numeric table into k clusters.

Each row is rescaled to [0,1], all pairwise Euclidean distances are computed
once, and a Metropolis chain with geometric cooling minimizes the mean
within-cluster distance.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.anneal/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

// loadConfig loads the effective configuration of cmd: defaults, config
// file, environment, then global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *anneal.Logger {
	level := anneal.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Format == "json" {
		return anneal.NewJSONLoggerTo(w, level)
	}
	return anneal.NewTextLoggerTo(w, level)
}
