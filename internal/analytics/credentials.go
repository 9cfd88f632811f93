package analytics

import (
	"sync"

	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/secrets"
)

// CredentialStore keeps credentials encrypted at rest and hands out a
// decrypted, format-validated view per call. Safe for concurrent use;
// Update swaps the stored ciphertext on config reload.
type CredentialStore struct {
	vault *secrets.Vault

	mu       sync.RWMutex
	encZone  string
	encToken string
	encEmail string
}

// NewCredentialStore wraps the encrypted credential triple.
func NewCredentialStore(vault *secrets.Vault, encZone, encToken, encEmail string) *CredentialStore {
	return &CredentialStore{
		vault:    vault,
		encZone:  encZone,
		encToken: encToken,
		encEmail: encEmail,
	}
}

// Update replaces the stored ciphertext, e.g. after a config reload.
func (c *CredentialStore) Update(encZone, encToken, encEmail string) {
	c.mu.Lock()
	c.encZone = encZone
	c.encToken = encToken
	c.encEmail = encEmail
	c.mu.Unlock()
}

// Seal encrypts a plaintext credential for storage. Validation is the
// caller's job; Seal never rejects.
func (c *CredentialStore) Seal(plaintext string) (string, error) {
	return c.vault.Encrypt(plaintext)
}

// Credentials decrypts and validates the stored triple. A failed
// decryption yields an empty string, which the format checks then
// reject, so corrupted ciphertext surfaces as an invalid credential
// rather than a crypto error.
func (c *CredentialStore) Credentials() (cloudflare.Credentials, error) {
	c.mu.RLock()
	encZone, encToken, encEmail := c.encZone, c.encToken, c.encEmail
	c.mu.RUnlock()

	if encZone == "" || encToken == "" {
		return cloudflare.Credentials{}, newError(CodeMissingCredentials, "zone id and api token are not configured")
	}

	zone := c.vault.Decrypt(encZone)
	if !secrets.ValidZoneID(zone) {
		return cloudflare.Credentials{}, newError(CodeInvalidZoneID, "zone id must be 32 hexadecimal characters")
	}

	token := c.vault.Decrypt(encToken)
	if !secrets.ValidToken(token) {
		return cloudflare.Credentials{}, newError(CodeInvalidToken, "api token has an unexpected format")
	}

	email := ""
	if encEmail != "" {
		email = c.vault.Decrypt(encEmail)
		if !secrets.ValidEmail(email) {
			return cloudflare.Credentials{}, newError(CodeInvalidEmail, "account email is not a valid address")
		}
	}

	return cloudflare.Credentials{
		ZoneID:       zone,
		Token:        token,
		AccountEmail: email,
	}, nil
}
