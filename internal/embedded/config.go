// Package embedded provides access to generated default configuration.
package embedded

import "github.com/edgestats/edgestats/internal/config"

// DefaultConfigTemplate returns the default config YAML generated from NewDefaultConfig().
func DefaultConfigTemplate() []byte {
	return config.GenerateDefaultConfigYAML()
}
