// Package main is the entry point for the disasterboard CLI.
//
// disasterboard can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	disasterboard serve -c config.yaml     # Start the dashboard
//	disasterboard validate -c config.yaml  # Validate configuration
//	disasterboard locate Chennai           # Show emergency info for a place
//	disasterboard version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "disasterboard",
	Short: "A real-time disaster information dashboard",
	Long: `disasterboard is a real-time disaster information dashboard.

It polls a disaster REST API for alerts, backend status, weather, local
news and social posts, and serves them in a web UI with Server-Sent Events
for live updates.

Quick start:
  1. Start the disaster API (default http://localhost:5000/api)
  2. Run: disasterboard serve
  3. Open http://localhost:8080 in your browser

Example config:
  api_url: http://localhost:5000/api
  location:
    address: Mumbai, Maharashtra
  views:
    - name: alerts
      interval: 60s
      max_retries: 3`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
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
	Long:  `Print the version, commit hash, and build date of this disasterboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "disasterboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
