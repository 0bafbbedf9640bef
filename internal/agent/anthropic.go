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
	anthropicDefaultModel = "claude-sonnet-4-5-20250929"
	anthropicDefaultURL   = "https://api.anthropic.com/v1"
	anthropicAPIVersion   = "2023-06-01"
)

// Anthropic talks to the Claude Messages API.
type Anthropic struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

// NewAnthropic creates a Claude Messages API client.
func NewAnthropic(opts Options) *Anthropic {
	model := opts.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultURL
	}

	return &Anthropic{
		apiKey:    opts.APIKey,
		model:     model,
		maxTokens: opts.MaxTokens,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    opts.HTTPClient,
	}
}

// Complete makes a single request to the Messages API and joins the
// text blocks of the answer.
func (a *Anthropic) Complete(ctx context.Context, p Prompt) (string, error) {
	reqBody := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    p.System,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: p.User}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &APIError{Provider: "anthropic", Status: resp.StatusCode, Message: msg}
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var textParts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	return strings.Join(textParts, ""), nil
}

// --- Claude API types ---

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
