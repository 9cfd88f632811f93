// Package secrets seals the Cloudflare API token at rest and validates
// credential formats before they reach the upstream client.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/mail"
	"regexp"
)

// legacySeparator splits ciphertext from IV in the pre-GCM storage format.
const legacySeparator = "::"

var (
	zoneIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	tokenPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{40}$`)
)

// cipherFormat tags the detected on-disk ciphertext layout.
type cipherFormat int

const (
	formatUnknown cipherFormat = iota
	// formatGCM is the current layout: base64(nonce || AES-256-GCM ciphertext).
	formatGCM
	// formatLegacy is the historical layout:
	// base64(base64(AES-256-CBC ciphertext) + "::" + IV).
	formatLegacy
)

// Vault encrypts and decrypts small secrets with a key derived from a
// stable process secret.
type Vault struct {
	key [sha256.Size]byte
}

// NewVault derives the encryption key from secret via SHA-256.
func NewVault(secret string) *Vault {
	return &Vault{key: sha256.Sum256([]byte(secret))}
}

// Encrypt seals plaintext in the current format: a random nonce prepended
// to the AES-256-GCM ciphertext, base64 encoded.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext in either the current or legacy format.
// Unparsable input yields an empty string rather than an error, so stored
// garbage never takes down a caller.
func (v *Vault) Decrypt(ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	switch detectFormat(raw) {
	case formatLegacy:
		return v.decryptLegacy(raw)
	case formatGCM:
		return v.decryptGCM(raw)
	default:
		return ""
	}
}

// detectFormat inspects decoded ciphertext and picks the layout.
func detectFormat(raw []byte) cipherFormat {
	if len(raw) == 0 {
		return formatUnknown
	}
	if bytes.Contains(raw, []byte(legacySeparator)) {
		return formatLegacy
	}
	return formatGCM
}

func (v *Vault) decryptGCM(raw []byte) string {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return ""
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return ""
	}
	if len(raw) < gcm.NonceSize() {
		return ""
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}

func (v *Vault) decryptLegacy(raw []byte) string {
	parts := bytes.SplitN(raw, []byte(legacySeparator), 2)
	if len(parts) != 2 || len(parts[1]) != aes.BlockSize {
		return ""
	}
	encrypted, err := base64.StdEncoding.DecodeString(string(parts[0]))
	if err != nil || len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return ""
	}
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return ""
	}
	plaintext := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, parts[1]).CryptBlocks(plaintext, encrypted)
	return string(stripPKCS7(plaintext))
}

// EncryptLegacy seals plaintext in the legacy CBC layout. Retained so the
// legacy decode path stays independently testable against real output.
func (v *Vault) EncryptLegacy(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	padded := padPKCS7([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)
	inner := base64.StdEncoding.EncodeToString(encrypted)
	outer := append([]byte(inner), []byte(legacySeparator)...)
	outer = append(outer, iv...)
	return base64.StdEncoding.EncodeToString(outer), nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func stripPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil
		}
	}
	return data[:len(data)-n]
}

// ValidZoneID reports whether s is a well-formed Cloudflare zone id
// (exactly 32 hex characters).
func ValidZoneID(s string) bool {
	return zoneIDPattern.MatchString(s)
}

// ValidToken reports whether s matches the Cloudflare API token format
// (40 characters of letters, digits, underscore or hyphen).
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// ValidEmail reports whether s parses as an email address.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
