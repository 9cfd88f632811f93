package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/edgestats/edgestats/internal/secrets"
)

// SealCredentials encrypts any credential still stored in plaintext.
// A value that already decrypts to a well-formed credential is left
// alone, so sealing is idempotent across restarts. Reports whether
// anything changed and needs persisting.
func (c *Config) SealCredentials(vault *secrets.Vault) (bool, error) {
	changed := false
	seal := func(value string, valid func(string) bool) (string, error) {
		if value == "" || valid(vault.Decrypt(value)) {
			return value, nil
		}
		if !valid(value) {
			return "", fmt.Errorf("value is neither sealed nor a well-formed credential")
		}
		enc, err := vault.Encrypt(value)
		if err != nil {
			return "", err
		}
		changed = true
		return enc, nil
	}

	zone, err := seal(c.ZoneID, secrets.ValidZoneID)
	if err != nil {
		return false, fmt.Errorf("zone-id: %w", err)
	}
	token, err := seal(c.APIToken, secrets.ValidToken)
	if err != nil {
		return false, fmt.Errorf("api-token: %w", err)
	}
	email, err := seal(c.AccountEmail, secrets.ValidEmail)
	if err != nil {
		return false, fmt.Errorf("account-email: %w", err)
	}

	c.ZoneID, c.APIToken, c.AccountEmail = zone, token, email
	return changed, nil
}

// Save writes the config as YAML via an atomic rename so a crashed
// write never truncates the live file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("stage config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
