// Package cli implements the capmap command-line interface using Cobra.
// Each subcommand maps to one engine capability (resolve, aggregate,
// render, etc.) or to running the API server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "capmap",
	Short: "capmap: territory aggregation and choropleth maps",
	Long: `capmap groups the territories of a skill-matching dataset into the eight
Wikimedia macro-regions, aggregates user, language and capacity counts per
region, and renders them as a colored world map.

State lives in $CAPMAP_HOME (default ~/.capmap).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
