// Package credentials provides secure storage for the model provider API keys
// used by the meetchat CLI. Keys are kept in ~/.meetchat/credentials.yaml,
// encrypted with AES-GCM at rest.
//
// Encryption Key Storage:
// The encryption key is stored securely using the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// For CI/testing environments, set MEETCHAT_ENCRYPTION_KEY to a 64-character
// hex string (32 bytes). Where no keyring exists, MEETCHAT_PASSPHRASE derives
// the key with Argon2id.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential storage constants.
const (
	DefaultCredentialsDir  = ".meetchat"
	DefaultCredentialsFile = "credentials.yaml"

	// ProviderOpenAI is the provider name of the chat model key.
	ProviderOpenAI = "openai"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no key is stored for a provider.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrInvalidProvider is returned for empty or malformed provider names.
	ErrInvalidProvider = errors.New("invalid provider name")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// APIKey is one stored provider key.
type APIKey struct {
	// Key is the API key (encrypted at rest).
	Key string `yaml:"key"`
	// AddedAt is when the key was stored.
	AddedAt time.Time `yaml:"added_at"`
}

// Credentials holds the stored API keys by provider.
type Credentials struct {
	Keys map[string]APIKey `yaml:"keys"`
	// LastUpdated is when the credentials were last updated.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Store manages credential storage operations.
type Store struct {
	// credentialsDir is the directory containing credentials.
	credentialsDir string
	// encryptionKey is the key used for encrypting/decrypting credentials.
	encryptionKey []byte
	// keyProvider is the source of the encryption key.
	keyProvider KeyProvider
}

// NewStore creates a credential store in the default directory using the
// default key provider.
func NewStore() (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	keyProvider, err := GetDefaultKeyProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}

	return NewStoreAt(dir, keyProvider)
}

// NewStoreAt creates a credential store in dir with a custom key provider.
func NewStoreAt(dir string, keyProvider KeyProvider) (*Store, error) {
	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		credentialsDir: dir,
		encryptionKey:  key,
		keyProvider:    keyProvider,
	}, nil
}

// KeyProviderDescription describes where the encryption key comes from.
func (s *Store) KeyProviderDescription() string {
	return s.keyProvider.Description()
}

// CredentialsDir returns the credentials directory path.
// Uses $MEETCHAT_CONFIG_DIR if set, otherwise ~/.meetchat
func CredentialsDir() (string, error) {
	if dir := os.Getenv("MEETCHAT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultCredentialsDir), nil
}

func (s *Store) path() string {
	return filepath.Join(s.credentialsDir, DefaultCredentialsFile)
}

// normalizeProvider lowercases a provider name and rejects anything that
// could not be an environment variable suffix.
func normalizeProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return "", ErrInvalidProvider
	}
	for _, r := range p {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return "", fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
		}
	}
	return p, nil
}

// EnvVar returns the environment variable that overrides the stored key for provider.
func EnvVar(provider string) string {
	return "MEETCHAT_" + strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}

// Save stores credentials to the credentials file, encrypting every key.
func (s *Store) Save(creds *Credentials) error {
	if err := os.MkdirAll(s.credentialsDir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	storage := Credentials{
		Keys:        make(map[string]APIKey, len(creds.Keys)),
		LastUpdated: time.Now(),
	}
	for provider, k := range creds.Keys {
		encrypted, err := s.encrypt(k.Key)
		if err != nil {
			return fmt.Errorf("encrypting %s key: %w", provider, err)
		}
		storage.Keys[provider] = APIKey{Key: encrypted, AddedAt: k.AddedAt}
	}

	data, err := yaml.Marshal(&storage)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	// Write with restrictive permissions
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	return nil
}

// Load reads and decrypts the credentials file. A missing file yields empty credentials.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{Keys: map[string]APIKey{}}, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.Keys == nil {
		creds.Keys = map[string]APIKey{}
	}

	for provider, k := range creds.Keys {
		decrypted, err := s.decrypt(k.Key)
		if err != nil {
			return nil, fmt.Errorf("decrypting %s key: %w", provider, err)
		}
		k.Key = decrypted
		creds.Keys[provider] = k
	}

	return &creds, nil
}

// SetKey stores the API key for provider, replacing any previous key.
func (s *Store) SetKey(provider, key string) error {
	p, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}

	creds, err := s.Load()
	if err != nil {
		return err
	}
	creds.Keys[p] = APIKey{Key: key, AddedAt: time.Now()}
	return s.Save(creds)
}

// DeleteKey removes the key for provider. Deleting a missing key is not an error.
func (s *Store) DeleteKey(provider string) error {
	p, err := normalizeProvider(provider)
	if err != nil {
		return err
	}

	creds, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := creds.Keys[p]; !ok {
		return nil
	}
	delete(creds.Keys, p)

	if len(creds.Keys) == 0 {
		if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing credentials file: %w", err)
		}
		return nil
	}
	return s.Save(creds)
}

// Key returns the active API key for provider and where it came from.
// The MEETCHAT_<PROVIDER>_API_KEY environment variable wins over the stored key.
func (s *Store) Key(provider string) (key, source string, err error) {
	p, err := normalizeProvider(provider)
	if err != nil {
		return "", "", err
	}

	if v := os.Getenv(EnvVar(p)); v != "" {
		return v, "env:" + EnvVar(p), nil
	}

	creds, err := s.Load()
	if err != nil {
		return "", "", err
	}
	k, ok := creds.Keys[p]
	if !ok || k.Key == "" {
		return "", "", fmt.Errorf("%s: %w", p, ErrNoCredentials)
	}
	return k.Key, "file:" + s.path(), nil
}

// Providers lists the providers with a stored key, sorted.
func (s *Store) Providers() ([]string, error) {
	creds, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(creds.Keys))
	for p := range creds.Keys {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Exists checks if the credentials file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}

	return string(plaintext), nil
}

// MaskAPIKey returns a masked API key showing only a short prefix.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}
	if strings.HasPrefix(apiKey, "sk-") {
		return "sk-" + strings.Repeat("*", 8) + "..." + apiKey[len(apiKey)-4:]
	}
	return apiKey[:4] + strings.Repeat("*", 8) + "..."
}

// KeyID creates a short stable ID for an API key (for display purposes).
func KeyID(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:4])
}
