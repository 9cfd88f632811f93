package watcher

import (
	"fmt"

	"github.com/edgestats/edgestats/internal/config"
)

// buildConfigChangeDetails computes a redacted, human-readable list of
// config changes. Credential values are never printed.
func buildConfigChangeDetails(oldCfg, newCfg *config.Config) []string {
	changes := make([]string, 0, 8)
	if oldCfg == nil || newCfg == nil {
		return changes
	}

	if oldCfg.Port != newCfg.Port {
		changes = append(changes, fmt.Sprintf("port: %d -> %d (restart required)", oldCfg.Port, newCfg.Port))
	}
	if oldCfg.CacheDSN != newCfg.CacheDSN {
		changes = append(changes, "cache-dsn: updated (restart required)")
	}
	if oldCfg.CacheTTLSeconds != newCfg.CacheTTLSeconds {
		changes = append(changes, fmt.Sprintf("cache-ttl-seconds: %d -> %d", oldCfg.CacheTTLSeconds, newCfg.CacheTTLSeconds))
	}
	if oldCfg.StaleAfterSeconds != newCfg.StaleAfterSeconds {
		changes = append(changes, fmt.Sprintf("stale-after-seconds: %d -> %d", oldCfg.StaleAfterSeconds, newCfg.StaleAfterSeconds))
	}
	if oldCfg.RateLimitPerHour != newCfg.RateLimitPerHour {
		changes = append(changes, fmt.Sprintf("rate-limit-per-hour: %d -> %d", oldCfg.RateLimitPerHour, newCfg.RateLimitPerHour))
	}
	if oldCfg.TrustProxyHeader != newCfg.TrustProxyHeader {
		changes = append(changes, fmt.Sprintf("trust-proxy-header: %t -> %t", oldCfg.TrustProxyHeader, newCfg.TrustProxyHeader))
	}
	if oldCfg.ErrorLogging != newCfg.ErrorLogging {
		changes = append(changes, fmt.Sprintf("error-logging: %t -> %t", oldCfg.ErrorLogging, newCfg.ErrorLogging))
	}
	if oldCfg.LoggingToFile != newCfg.LoggingToFile {
		changes = append(changes, fmt.Sprintf("logging-to-file: %t -> %t", oldCfg.LoggingToFile, newCfg.LoggingToFile))
	}
	if oldCfg.Debug != newCfg.Debug {
		changes = append(changes, fmt.Sprintf("debug: %t -> %t", oldCfg.Debug, newCfg.Debug))
	}

	// Credentials, redacted.
	if credentialFingerprint(oldCfg.ZoneID) != credentialFingerprint(newCfg.ZoneID) {
		changes = append(changes, "zone-id: updated (redacted)")
	}
	if credentialFingerprint(oldCfg.APIToken) != credentialFingerprint(newCfg.APIToken) {
		changes = append(changes, "api-token: updated (redacted)")
	}
	if oldCfg.AccountEmail != newCfg.AccountEmail {
		changes = append(changes, "account-email: updated")
	}
	if credentialFingerprint(oldCfg.Secret) != credentialFingerprint(newCfg.Secret) {
		changes = append(changes, "secret: updated (restart required, redacted)")
	}

	return changes
}
