package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hupe1980/anneal/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after applying defaults, the config file
(~/.anneal/config.yaml or --config) and ANNEAL_* environment variables.

Secrets are redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			redacted := *cfg
			redacted.Storage.MinIO = cfg.Storage.MinIO.Redacted()

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(redacted)
			}

			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Configuration (%s)\n", path)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(redacted); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
