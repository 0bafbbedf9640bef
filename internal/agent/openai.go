package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openAIDefaultModel = "gpt-4o-mini"
	openAIDefaultURL   = "https://api.openai.com/v1"
)

// OpenAI talks to the Chat Completions API.
type OpenAI struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

// NewOpenAI creates an OpenAI chat model client.
func NewOpenAI(opts Options) *OpenAI {
	model := opts.Model
	if model == "" {
		model = openAIDefaultModel
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultURL
	}

	return &OpenAI{
		apiKey:    opts.APIKey,
		model:     model,
		maxTokens: opts.MaxTokens,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    opts.HTTPClient,
	}
}

// Complete sends p as a system + user message pair and returns the first
// choice's content.
func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: p.User})

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr openAIErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &APIError{Provider: "openai", Status: resp.StatusCode, Message: msg}
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}

	return result.Choices[0].Message.Content, nil
}

// --- Chat Completions API types ---

type openAIRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Messages  []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
