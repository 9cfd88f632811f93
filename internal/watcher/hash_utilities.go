package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// credentialFingerprint hashes a secret value so diffs can report "changed"
// without ever printing it.
func credentialFingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return hashBytes([]byte(trimmed))[:12]
}
