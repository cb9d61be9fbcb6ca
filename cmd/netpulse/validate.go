package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/netpulse/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a netpulse configuration file without starting the server.

This command parses the YAML, expands environment variables, builds every
widget and validates all fields. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  netpulse validate -c config.yaml
  netpulse validate --config /etc/netpulse/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	validateCmd.Flags().String("env-file", defaultEnvFile, "dotenv file loaded before the config is parsed")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := loadEnv(cmd); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	widgets, err := config.BuildWidgets(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Base URL:      %s\n", cfg.ResolveBaseURL())
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Visibility:    %s\n", cfg.Visibility)
	fmt.Fprintf(out, "  Widgets:       %d\n", len(widgets))
	for _, w := range widgets {
		fmt.Fprintf(out, "    - %s (%s, %s)\n", w.Name(), w.Kind(), w.Resource())
	}
	if cfg.NATS.URL != "" {
		fmt.Fprintf(out, "  NATS:          %s\n", cfg.NATS.URL)
	}

	return nil
}
