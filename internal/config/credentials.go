package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edgestats/edgestats/internal/json"
)

const (
	CredentialsFileName = "credentials.json"
	SecretLength        = 32 // 64-char hex string
	CredentialsVersion  = 1
)

// Credentials holds the process secret the credential encryption key is
// derived from. It lives outside config.yaml so the config file can be
// shared or templated without leaking the secret.
type Credentials struct {
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created-at"`
	Version   int       `json:"version"`
}

var (
	credCache   *Credentials
	credCacheMu sync.RWMutex
)

// CredentialsFilePath returns the credentials file path following the
// XDG spec: $XDG_CONFIG_HOME/edgestats/credentials.json.
func CredentialsFilePath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, CredentialsFileName)
}

// GenerateSecret returns a fresh random process secret.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// LoadCredentials loads the secret with priority: ENV > cache > file.
func LoadCredentials() (*Credentials, error) {
	// Priority 1: Environment variable
	if key := strings.TrimSpace(os.Getenv("EDGESTATS_SECRET")); key != "" {
		return &Credentials{Secret: key, CreatedAt: time.Now(), Version: CredentialsVersion}, nil
	}

	// Priority 2: Cache
	credCacheMu.RLock()
	if credCache != nil {
		c := *credCache
		credCacheMu.RUnlock()
		return &c, nil
	}
	credCacheMu.RUnlock()

	// Priority 3: File
	path := CredentialsFilePath()
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	if creds.Secret == "" {
		return nil, nil
	}

	credCacheMu.Lock()
	credCache = &creds
	credCacheMu.Unlock()

	return &creds, nil
}

// SaveCredentials persists the secret file with owner-only permissions.
func SaveCredentials(creds *Credentials) error {
	path := CredentialsFilePath()
	if path == "" {
		return fmt.Errorf("cannot determine credentials path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	if creds.Version == 0 {
		creds.Version = CredentialsVersion
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	credCacheMu.Lock()
	credCache = creds
	credCacheMu.Unlock()

	return nil
}

// CreateCredentials generates and persists a new secret, returning it.
func CreateCredentials() (string, error) {
	key, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	creds := &Credentials{Secret: key, CreatedAt: time.Now(), Version: CredentialsVersion}
	if err := SaveCredentials(creds); err != nil {
		return "", err
	}
	return key, nil
}

// GetSecret returns the current process secret, empty when none exists.
func GetSecret() string {
	creds, _ := LoadCredentials()
	if creds == nil {
		return ""
	}
	return creds.Secret
}

// HasSecret reports whether a process secret is available.
func HasSecret() bool {
	return GetSecret() != ""
}

// InvalidateCredentialCache drops the in-memory secret cache.
func InvalidateCredentialCache() {
	credCacheMu.Lock()
	credCache = nil
	credCacheMu.Unlock()
}
