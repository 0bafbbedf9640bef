package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubKeyring(t *testing.T, entries map[string]string) {
	t.Helper()
	orig := lookupKeyring
	lookupKeyring = func(key string) (string, error) {
		if v, ok := entries[key]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookupKeyring = orig })
}

func TestLoad_PrefersEnvironment(t *testing.T) {
	stubKeyring(t, map[string]string{KeyEmailPassword: "from-keyring"})
	t.Setenv(KeyEmailUser, "me@example.com")
	t.Setenv(KeyEmailPassword, "from-env")
	t.Setenv(KeyOpenAI, "sk-test")
	t.Setenv(KeyAnthropic, "")

	creds := Load()

	assert.Equal(t, "me@example.com", creds.EmailUser)
	assert.Equal(t, "from-env", creds.EmailPassword)
	assert.Equal(t, "sk-test", creds.OpenAIKey)
	assert.Empty(t, creds.AnthropicKey)
}

func TestLoad_FallsBackToKeyring(t *testing.T) {
	stubKeyring(t, map[string]string{
		KeyEmailPassword: "from-keyring",
		KeyAnthropic:     "ant-key",
	})
	t.Setenv(KeyEmailUser, "")
	t.Setenv(KeyEmailPassword, "")
	t.Setenv(KeyOpenAI, "")
	t.Setenv(KeyAnthropic, "")

	creds := Load()

	assert.Equal(t, DefaultEmailUser, creds.EmailUser)
	assert.Equal(t, "from-keyring", creds.EmailPassword)
	assert.Empty(t, creds.OpenAIKey)
	assert.Equal(t, "ant-key", creds.AnthropicKey)
}

func TestCredentials_APIKey(t *testing.T) {
	creds := Credentials{OpenAIKey: "o", AnthropicKey: "a"}

	assert.Equal(t, "o", creds.APIKey("openai"))
	assert.Equal(t, "a", creds.APIKey("anthropic"))
	assert.Empty(t, creds.APIKey("ollama"))
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(KeyEmailPassword))
	assert.False(t, IsKnown("HOME"))
}
