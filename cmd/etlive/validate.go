package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etlive/etlive/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an etlive configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  etlive validate -c etlive.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// construct nodes too, so the result matches what serve would accept
	nodes, err := config.BuildNodes(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	nats := "disabled"
	if cfg.NATS.URL != "" {
		nats = cfg.NATS.URL
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Poll timeout:  %s\n", cfg.PollTimeout.Duration())
	fmt.Fprintf(out, "  NATS:          %s\n", nats)
	fmt.Fprintf(out, "  Nodes:         %d\n", len(nodes))
	for _, n := range nodes {
		fmt.Fprintf(out, "    - %s %s\n", n.ID(), n.Endpoint())
	}

	return nil
}
