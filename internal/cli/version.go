package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgestats/edgestats/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edgestats %s\n", buildinfo.Version)
		fmt.Printf("Commit: %s\n", buildinfo.Commit)
		fmt.Printf("Built: %s\n", buildinfo.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
