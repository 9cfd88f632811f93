package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/edgestats/edgestats/internal/app"
	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
	log "github.com/edgestats/edgestats/internal/logging"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the edgestats server",
	Long: `Start the edgestats analytics server.

This is the main command. It loads the configuration, opens the cache,
and serves the dashboard API until interrupted.`,
	Run: func(c *cobra.Command, args []string) {
		logging.SetupBaseLogger()

		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}

		result, err := Bootstrap(configPath)
		if err != nil {
			log.Fatalf("Failed to bootstrap: %v", err)
			os.Exit(1)
		}

		cfg := result.Config

		if servePort != 0 && servePort != config.DefaultPort {
			cfg.Port = servePort
		}

		logging.SetDebug(cfg.Debug)
		if err := logging.ConfigureLogOutput(cfg.LoggingToFile, config.ConfigDir()); err != nil {
			log.Fatalf("Failed to configure log output: %v", err)
		}

		if err := app.Run(cfg, result.ConfigFilePath); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "server port")
	rootCmd.AddCommand(serveCmd)
}
