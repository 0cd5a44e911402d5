// Package main is the entry point for the etlive CLI.
//
// Usage:
//
//	etlive serve -c etlive.yaml    # Poll nodes and serve the API
//	etlive validate -c etlive.yaml # Validate configuration
//	etlive version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "etlive",
	Short: "Live telemetry collector for ET nodes",
	Long: `etlive polls ET sensor nodes for their latest measurement and serves
the most recent value of each node over HTTP.

Quick start:
  1. Create a config file (etlive.yaml)
  2. Run: etlive serve -c etlive.yaml
  3. Open http://localhost:8080 or GET /api/data/all

Example config:
  port: 8080
  poll_interval: 1s
  nodes:
    - id: ET0001
      endpoint: http://10.0.0.1/api/last
      location: Zurich`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this etlive binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "etlive %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
