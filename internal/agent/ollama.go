package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const ollamaDefaultModel = "llama3.2"

// Ollama runs prompts against a local or remote Ollama server.
type Ollama struct {
	client    *api.Client
	model     string
	maxTokens int
}

// NewOllama creates an Ollama chat client. Without a BaseURL the server
// address comes from OLLAMA_HOST.
func NewOllama(opts Options) (*Ollama, error) {
	var client *api.Client

	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing ollama base URL %q: %w", opts.BaseURL, err)
		}
		client = api.NewClient(base, opts.HTTPClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		client = c
	}

	model := opts.Model
	if model == "" {
		model = ollamaDefaultModel
	}

	return &Ollama{client: client, model: model, maxTokens: opts.MaxTokens}, nil
}

// Complete runs a non-streaming chat request.
func (o *Ollama) Complete(ctx context.Context, p Prompt) (string, error) {
	messages := make([]api.Message, 0, 2)
	if p.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: p.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: p.User})

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"num_predict": o.maxTokens,
		},
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}

	return sb.String(), nil
}
