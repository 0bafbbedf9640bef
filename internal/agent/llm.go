package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prompt is a single-turn request to a language model.
type Prompt struct {
	System string
	User   string
}

// LLM completes a prompt with a text answer.
type LLM interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// APIError is returned when a provider answers with a non-success status.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// Options selects and configures an LLM provider.
type Options struct {
	// Provider is "openai", "anthropic" or "ollama".
	Provider  string
	Model     string
	MaxTokens int
	APIKey    string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	HTTPClient *http.Client
}

const (
	defaultMaxTokens = 1024
	requestTimeout   = 2 * time.Minute
)

// New returns the LLM for opts.Provider.
func New(opts Options) (LLM, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}

	switch opts.Provider {
	case "openai", "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAI(opts), nil
	case "anthropic":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropic(opts), nil
	case "ollama":
		return NewOllama(opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}
