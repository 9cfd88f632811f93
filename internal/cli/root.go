// Package cli provides the Cobra-based command-line interface for edgestats.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "edgestats",
	Short: "Cloudflare zone analytics service",
	Long: `edgestats polls the Cloudflare GraphQL Analytics API for a zone and
serves normalized traffic snapshots over a small HTTP API, with a
two-tier cache and stale-while-revalidate refresh.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $XDG_CONFIG_HOME/edgestats/config.yaml)")
}
