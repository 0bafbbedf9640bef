package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "autoreply"

// Environment variable names, also used as keyring keys.
const (
	KeyEmailUser     = "EMAIL_USER"
	KeyEmailPassword = "EMAIL_PASSWORD"
	KeyOpenAI        = "OPENAI_API_KEY"
	KeyAnthropic     = "ANTHROPIC_API_KEY"
)

// DefaultEmailUser is the placeholder login used when EMAIL_USER is unset.
const DefaultEmailUser = "your_email@gmail.com"

// Known lists the keys that may be stored in the keyring.
var Known = []string{KeyEmailUser, KeyEmailPassword, KeyOpenAI, KeyAnthropic}

// Credentials holds the secrets a run needs.
type Credentials struct {
	EmailUser     string
	EmailPassword string
	OpenAIKey     string
	AnthropicKey  string
}

// APIKey returns the key for the given LLM provider; ollama needs none.
func (c Credentials) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	default:
		return ""
	}
}

// lookupKeyring is swapped out in tests.
var lookupKeyring = Get

// Load resolves every credential from the environment, falling back to
// the system keyring for anything unset.
func Load() Credentials {
	user := Resolve(KeyEmailUser)
	if user == "" {
		user = DefaultEmailUser
	}

	return Credentials{
		EmailUser:     user,
		EmailPassword: Resolve(KeyEmailPassword),
		OpenAIKey:     Resolve(KeyOpenAI),
		AnthropicKey:  Resolve(KeyAnthropic),
	}
}

// Resolve returns the environment value of key, or the keyring entry of
// the same name. Missing entries resolve to "".
func Resolve(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	v, err := lookupKeyring(key)
	if err != nil {
		return ""
	}
	return v
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/autoreply/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("autoreply-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// IsKnown reports whether key is one of the managed credential names.
func IsKnown(key string) bool {
	for _, k := range Known {
		if k == key {
			return true
		}
	}
	return false
}
