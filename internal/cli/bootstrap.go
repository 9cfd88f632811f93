package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/embedded"
	log "github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/util"
)

// BootstrapResult contains the result of bootstrapping the application.
type BootstrapResult struct {
	Config         *config.Config
	ConfigFilePath string
}

// Bootstrap initializes the application configuration. It should be
// called before any command that needs config access.
func Bootstrap(configPath string) (*BootstrapResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	defaultConfigPath := config.DefaultConfigPath()

	var cfg *config.Config
	var configFilePath string

	if configPath != "" {
		if resolved, errResolve := util.ResolvePath(configPath); errResolve == nil {
			configPath = resolved
		}
		configFilePath = configPath

		if configPath == defaultConfigPath {
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				autoInitConfig(configPath)
			}
		}

		cfg, err = config.LoadConfigOptional(configPath, true)
	} else {
		configFilePath = filepath.Join(wd, "config.yaml")
		cfg, err = config.LoadConfigOptional(configFilePath, true)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	cfg.ApplyEnvOverrides()

	if err := ensureSecret(cfg); err != nil {
		return nil, err
	}

	return &BootstrapResult{
		Config:         cfg,
		ConfigFilePath: configFilePath,
	}, nil
}

// ensureSecret guarantees a stable encryption secret. The secret lives
// in credentials.json next to the config (or EDGESTATS_SECRET); one is
// generated and persisted on first run so sealed credentials survive
// restarts.
func ensureSecret(cfg *config.Config) error {
	if cfg.Secret != "" {
		return nil
	}
	if key := config.GetSecret(); key != "" {
		cfg.Secret = key
		return nil
	}

	key, err := config.CreateCredentials()
	if err != nil {
		return fmt.Errorf("create credentials: %w", err)
	}
	cfg.Secret = key
	log.Infof("generated encryption secret at %s", config.CredentialsFilePath())
	return nil
}

// autoInitConfig silently creates config on first run
func autoInitConfig(configPath string) {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return
	}
	if err := os.WriteFile(configPath, embedded.DefaultConfigTemplate(), 0o600); err != nil {
		return
	}
	fmt.Printf("First run: created config at %s\n", configPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DoInitConfig handles the init command.
func DoInitConfig(configPath string, force bool) error {
	configPath, _ = util.ResolvePath(configPath)
	dir := filepath.Dir(configPath)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if fileExists(configPath) && !force {
		fmt.Printf("Config already exists: %s\n", configPath)
		fmt.Println("Use init --force to overwrite with defaults")
		return nil
	}

	if err := os.WriteFile(configPath, embedded.DefaultConfigTemplate(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Created: %s\n", configPath)
	fmt.Println("Set zone-id, api-token, and account-email, then run: edgestats check")
	return nil
}
