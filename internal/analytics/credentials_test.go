package analytics

import (
	"errors"
	"testing"

	"github.com/edgestats/edgestats/internal/secrets"
)

const (
	testZoneID = "0123456789abcdef0123456789abcdef"
	testToken  = "v0dcQ9u_Ej2JJNOTAREALTOKEN_x8mW31hPqZra0"
	testEmail  = "ops@example.com"
)

func sealedStore(t *testing.T, zone, token, email string) *CredentialStore {
	t.Helper()
	vault := secrets.NewVault("unit-test-secret")

	seal := func(s string) string {
		if s == "" {
			return ""
		}
		enc, err := vault.Encrypt(s)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		return enc
	}
	return NewCredentialStore(vault, seal(zone), seal(token), seal(email))
}

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var tagged *Error
	if !errors.As(err, &tagged) {
		t.Fatalf("expected tagged error, got %v", err)
	}
	return tagged.Code
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := sealedStore(t, testZoneID, testToken, testEmail)

	creds, err := store.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.ZoneID != testZoneID || creds.Token != testToken || creds.AccountEmail != testEmail {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestCredentialsEmailOptional(t *testing.T) {
	store := sealedStore(t, testZoneID, testToken, "")

	creds, err := store.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.AccountEmail != "" {
		t.Errorf("expected empty email, got %q", creds.AccountEmail)
	}
}

func TestCredentialsValidation(t *testing.T) {
	tests := []struct {
		name              string
		zone, token, mail string
		want              Code
	}{
		{"missing zone", "", testToken, testEmail, CodeMissingCredentials},
		{"missing token", testZoneID, "", testEmail, CodeMissingCredentials},
		{"bad zone", "not-a-zone", testToken, testEmail, CodeInvalidZoneID},
		{"short token", testZoneID, "too-short", testEmail, CodeInvalidToken},
		{"bad email", testZoneID, testToken, "not-an-email", CodeInvalidEmail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := sealedStore(t, tc.zone, tc.token, tc.mail)
			if _, err := store.Credentials(); codeOf(t, err) != tc.want {
				t.Errorf("got %s, want %s", codeOf(t, err), tc.want)
			}
		})
	}
}

func TestCredentialsCorruptCiphertext(t *testing.T) {
	vault := secrets.NewVault("unit-test-secret")
	encToken, _ := vault.Encrypt(testToken)
	store := NewCredentialStore(vault, "!!not-ciphertext!!", encToken, "")

	_, err := store.Credentials()
	if codeOf(t, err) != CodeInvalidZoneID {
		t.Errorf("corrupt ciphertext should surface as invalid zone id, got %v", err)
	}
}

func TestCredentialsUpdate(t *testing.T) {
	store := sealedStore(t, testZoneID, testToken, "")

	newZone := "ffffffffffffffffffffffffffffffff"
	encZone, _ := store.Seal(newZone)
	encToken, _ := store.Seal(testToken)
	store.Update(encZone, encToken, "")

	creds, err := store.Credentials()
	if err != nil {
		t.Fatalf("credentials after update: %v", err)
	}
	if creds.ZoneID != newZone {
		t.Errorf("expected updated zone, got %q", creds.ZoneID)
	}
}
