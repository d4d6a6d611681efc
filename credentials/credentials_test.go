package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	t.Setenv("TEST_KEY", testKeyHex)
	dir := t.TempDir()
	s, err := NewStoreAt(dir, NewEnvKeyProvider("TEST_KEY"))
	if err != nil {
		t.Fatalf("NewStoreAt() error = %v", err)
	}
	return s, dir
}

func TestStore_SetAndGetKey(t *testing.T) {
	s, dir := newTestStore(t)
	t.Setenv(EnvVar(ProviderOpenAI), "")

	if err := s.SetKey("OpenAI", "sk-test-1234567890"); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}

	key, source, err := s.Key(ProviderOpenAI)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key != "sk-test-1234567890" {
		t.Errorf("Key() = %q", key)
	}
	if !strings.HasPrefix(source, "file:") {
		t.Errorf("source = %q, want file:", source)
	}

	// The key must not be stored in plaintext.
	data, err := os.ReadFile(filepath.Join(dir, DefaultCredentialsFile))
	if err != nil {
		t.Fatalf("reading credentials: %v", err)
	}
	if strings.Contains(string(data), "sk-test") {
		t.Error("credentials file contains plaintext key")
	}

	info, _ := os.Stat(filepath.Join(dir, DefaultCredentialsFile))
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials mode = %o, want 600", perm)
	}
}

func TestStore_EnvOverridesFile(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetKey(ProviderOpenAI, "sk-from-file-000"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEETCHAT_OPENAI_API_KEY", "sk-from-env-000")

	key, source, err := s.Key(ProviderOpenAI)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key != "sk-from-env-000" || source != "env:MEETCHAT_OPENAI_API_KEY" {
		t.Errorf("Key() = %q, %q", key, source)
	}
}

func TestStore_MissingKey(t *testing.T) {
	s, _ := newTestStore(t)
	t.Setenv(EnvVar("azure"), "")

	_, _, err := s.Key("azure")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Key() error = %v, want ErrNoCredentials", err)
	}
}

func TestStore_InvalidProvider(t *testing.T) {
	s, _ := newTestStore(t)

	for _, p := range []string{"", "   ", "open ai", "a/b"} {
		if err := s.SetKey(p, "k"); !errors.Is(err, ErrInvalidProvider) {
			t.Errorf("SetKey(%q) error = %v, want ErrInvalidProvider", p, err)
		}
	}
	if err := s.SetKey(ProviderOpenAI, "  "); err == nil {
		t.Error("SetKey() expected error for empty key")
	}
}

func TestStore_ProvidersAndDelete(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetKey("openai", "sk-aaaaaaaaaaaa"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetKey("azure-openai", "az-bbbbbbbbbbbb"); err != nil {
		t.Fatal(err)
	}

	providers, err := s.Providers()
	if err != nil {
		t.Fatalf("Providers() error = %v", err)
	}
	if strings.Join(providers, ",") != "azure-openai,openai" {
		t.Errorf("Providers() = %v", providers)
	}

	if err := s.DeleteKey("azure-openai"); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	if err := s.DeleteKey("azure-openai"); err != nil {
		t.Errorf("deleting a missing key should succeed: %v", err)
	}
	if !s.Exists() {
		t.Error("credentials file should remain while keys are stored")
	}

	if err := s.DeleteKey("openai"); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	if s.Exists() {
		t.Error("credentials file should be removed with the last key")
	}
}

func TestStore_WrongKeyCannotDecrypt(t *testing.T) {
	s, dir := newTestStore(t)
	if err := s.SetKey(ProviderOpenAI, "sk-secret-value"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OTHER_KEY", strings.Repeat("ab", keyLength))
	other, err := NewStoreAt(dir, NewEnvKeyProvider("OTHER_KEY"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = other.Load()
	if !errors.Is(err, ErrEncryptionFailed) {
		t.Errorf("Load() error = %v, want ErrEncryptionFailed", err)
	}
}

func TestStore_PassphraseProvider(t *testing.T) {
	dir := t.TempDir()
	salt, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewStoreAt(dir, NewPassphraseKeyProvider("correct horse", salt))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetKey(ProviderOpenAI, "sk-passphrase-key"); err != nil {
		t.Fatal(err)
	}

	again, err := NewStoreAt(dir, NewPassphraseKeyProvider("correct horse", salt))
	if err != nil {
		t.Fatal(err)
	}
	creds, err := again.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.Keys[ProviderOpenAI].Key != "sk-passphrase-key" {
		t.Errorf("loaded key = %q", creds.Keys[ProviderOpenAI].Key)
	}
	if again.KeyProviderDescription() != "Passphrase-derived key (Argon2id)" {
		t.Errorf("KeyProviderDescription() = %q", again.KeyProviderDescription())
	}
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("azure-openai"); got != "MEETCHAT_AZURE_OPENAI_API_KEY" {
		t.Errorf("EnvVar() = %q", got)
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "*****"},
		{"sk-proj-abcdefgh1234", "sk-********...1234"},
		{"az-0123456789", "az-0********..."},
	}
	for _, tc := range tests {
		if got := MaskAPIKey(tc.in); got != tc.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeyID(t *testing.T) {
	id := KeyID("sk-test")
	if len(id) != 8 {
		t.Errorf("KeyID() length = %d, want 8", len(id))
	}
	if id != KeyID("sk-test") {
		t.Error("KeyID() should be stable")
	}
}
