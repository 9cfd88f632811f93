package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/edgestats/edgestats/internal/config"
	log "github.com/edgestats/edgestats/internal/logging"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file",
	Long: `Create the edgestats configuration file.

On first run this writes a commented starter config. An existing file
is left untouched unless --force is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		if err := DoInitConfig(configPath, forceInit); err != nil {
			log.Fatalf("Init failed: %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite existing config with defaults")
	rootCmd.AddCommand(initCmd)
}
