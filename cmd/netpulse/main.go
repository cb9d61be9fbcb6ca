// Package main is the entry point for the netpulse CLI.
//
// netpulse can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	netpulse serve -c config.yaml                  # Start the board and API
//	netpulse watch --base-url http://router:9000   # Print polled states as JSON lines
//	netpulse validate -c config.yaml               # Validate configuration
//	netpulse version                               # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "netpulse",
	Short: "A visibility-aware network dashboard poller",
	Long: `netpulse polls a network monitoring backend for traffic and statistics
and exposes the latest state of each dashboard widget over HTTP.

Polling only runs while at least one dashboard page reports itself
visible on /api/visibility (or always, with visibility: always).

Quick start:
  1. Create a config file (netpulse.yaml)
  2. Run: netpulse serve -c netpulse.yaml
  3. Read http://localhost:8080/api/state

Example config:
  port: 8080
  base_url: http://localhost:9000
  poll_interval: 5s
  widgets:
    - name: Traffic
      kind: traffic
    - name: Stats
      kind: stats`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this netpulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "netpulse %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
