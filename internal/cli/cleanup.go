package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgestats/edgestats/internal/cache"
	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
	log "github.com/edgestats/edgestats/internal/logging"
)

var cleanupFlush bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	Long: `Remove expired entries from the durable cache. The server does this
daily on its own; this command exists for cron jobs and manual runs.

Use --flush to drop every entry regardless of expiration.`,
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

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		store, err := cache.Open(ctx, result.Config.CacheDSN)
		if err != nil {
			log.Fatalf("Failed to open cache: %v", err)
		}
		defer store.Close()

		if cleanupFlush {
			if err := store.FlushAll(ctx); err != nil {
				log.Fatalf("Flush failed: %v", err)
			}
			fmt.Println("Cache flushed")
			return
		}

		removed, err := store.Cleanup(ctx)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Removed %d expired entries\n", removed)
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupFlush, "flush", false, "drop all cache entries")
	rootCmd.AddCommand(cleanupCmd)
}
