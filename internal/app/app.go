// Package app assembles the edgestats service from its parts and owns
// the process lifecycle: startup, config hot reload, graceful shutdown.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgestats/edgestats/internal/analytics"
	"github.com/edgestats/edgestats/internal/api"
	"github.com/edgestats/edgestats/internal/cache"
	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/ratelimit"
	"github.com/edgestats/edgestats/internal/scheduler"
	"github.com/edgestats/edgestats/internal/secrets"
	"github.com/edgestats/edgestats/internal/util"
	"github.com/edgestats/edgestats/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// Run starts the service and blocks until SIGINT/SIGTERM or a fatal
// listener error. configPath may be empty when running purely from
// environment configuration; hot reload is then disabled.
func Run(cfg *config.Config, configPath string) error {
	vault := secrets.NewVault(cfg.Secret)

	if changed, err := cfg.SealCredentials(vault); err != nil {
		logging.Warnf("app: credential sealing skipped: %v", err)
	} else if changed && configPath != "" {
		if err := cfg.Save(configPath); err != nil {
			logging.Warnf("app: failed to persist sealed credentials: %v", err)
		} else {
			logging.Infof("app: plaintext credentials sealed and persisted")
		}
	}

	credStore := analytics.NewCredentialStore(vault, cfg.ZoneID, cfg.APIToken, cfg.AccountEmail)
	client := cloudflare.NewClient(credStore, "")

	store, err := cache.Open(context.Background(), cfg.CacheDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	threshold := cfg.RateLimitPerHour
	if threshold <= 0 {
		threshold = ratelimit.DefaultThreshold
	}
	limiter := ratelimit.NewLimiter(threshold)

	service := analytics.NewService(store, limiter, client, credStore, cfg.CacheTTL(), cfg.StaleAfter())
	service.UpdateSettings(cfg.CacheTTL(), cfg.StaleAfter(), cfg.ErrorLogging)

	sched := scheduler.New(service, store, limiter)
	sched.Start()
	defer sched.Stop()

	server := api.New(service, api.Options{
		Port:             cfg.Port,
		Debug:            cfg.Debug,
		TrustProxyHeader: cfg.TrustProxyHeader,
	})

	if configPath != "" {
		w := watcher.New(configPath, cfg, func(newCfg *config.Config) {
			applyReload(newCfg, configPath, vault, service, limiter, server)
		})
		if err := w.Start(); err != nil {
			logging.Warnf("app: config watcher disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Infof("app: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Warnf("app: shutdown incomplete: %v", err)
	}
	return nil
}

// applyReload pushes reload-safe settings into the running components.
// Port, cache DSN, and the process secret require a restart.
func applyReload(cfg *config.Config, configPath string, vault *secrets.Vault, service *analytics.Service, limiter *ratelimit.Limiter, server *api.Server) {
	if changed, err := cfg.SealCredentials(vault); err != nil {
		logging.Warnf("app: reloaded credentials not sealed: %v", err)
	} else if changed {
		if err := cfg.Save(configPath); err != nil {
			logging.Warnf("app: failed to persist sealed credentials: %v", err)
		}
	}

	service.CredentialStore().Update(cfg.ZoneID, cfg.APIToken, cfg.AccountEmail)
	service.UpdateSettings(cfg.CacheTTL(), cfg.StaleAfter(), cfg.ErrorLogging)

	if cfg.RateLimitPerHour > 0 {
		limiter.SetThreshold(cfg.RateLimitPerHour)
	}
	server.SetTrustProxyHeader(cfg.TrustProxyHeader)
	util.SetLogLevel(cfg)
}
