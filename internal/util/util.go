// Package util provides small helpers shared across the CLI and server:
// path resolution and log level wiring.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/edgestats/edgestats/internal/config"
)

// SetLogLevel configures the logrus log level based on the configuration.
// It sets the log level to DebugLevel if debug mode is enabled, otherwise to InfoLevel.
func SetLogLevel(cfg *config.Config) {
	currentLevel := log.GetLevel()
	var newLevel log.Level
	if cfg.Debug {
		newLevel = log.DebugLevel
	} else {
		newLevel = log.InfoLevel
	}

	if currentLevel != newLevel {
		log.SetLevel(newLevel)
		log.Infof("log level changed from %s to %s (debug=%t)", currentLevel, newLevel, cfg.Debug)
	}
}

// ResolvePath normalizes a configured filesystem path for consistent reuse.
// It handles:
//   - "$XDG_CONFIG_HOME/..." -> expands XDG_CONFIG_HOME env var
//   - "~..." -> expands to user's home directory
//   - Returns a cleaned path
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	// Handle $XDG_CONFIG_HOME prefix
	if strings.HasPrefix(path, "$XDG_CONFIG_HOME") {
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			// Fallback to ~/.config if XDG_CONFIG_HOME not set
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve path: %w", err)
			}
			xdg = filepath.Join(home, ".config")
		}
		remainder := strings.TrimPrefix(path, "$XDG_CONFIG_HOME")
		remainder = strings.TrimLeft(remainder, "/\\")
		if remainder == "" {
			return filepath.Clean(xdg), nil
		}
		normalized := strings.ReplaceAll(remainder, "\\", "/")
		return filepath.Clean(filepath.Join(xdg, filepath.FromSlash(normalized))), nil
	}

	// Handle ~ prefix (legacy support)
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		remainder := strings.TrimPrefix(path, "~")
		remainder = strings.TrimLeft(remainder, "/\\")
		if remainder == "" {
			return filepath.Clean(home), nil
		}
		normalized := strings.ReplaceAll(remainder, "\\", "/")
		return filepath.Clean(filepath.Join(home, filepath.FromSlash(normalized))), nil
	}
	return filepath.Clean(path), nil
}
