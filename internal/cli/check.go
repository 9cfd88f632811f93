package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgestats/edgestats/internal/analytics"
	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
	log "github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/secrets"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured Cloudflare credentials",
	Long: `Verify the configured Cloudflare credentials by querying the API
for the authenticated account. Prints the account email on success.`,
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

		vault := secrets.NewVault(cfg.Secret)
		if _, err := cfg.SealCredentials(vault); err != nil {
			log.Fatalf("Credential check failed: %v", err)
		}
		credStore := analytics.NewCredentialStore(vault, cfg.ZoneID, cfg.APIToken, cfg.AccountEmail)
		client := cloudflare.NewClient(credStore, "")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		email, err := client.TestConnection(ctx)
		if err != nil {
			log.Fatalf("Connection test failed: %v", err)
		}
		fmt.Printf("Connected. Authenticated as %s\n", email)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
