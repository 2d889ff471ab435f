// Package textgen wraps an OpenRouter-compatible chat completion API
// for structured JSON generation. The client performs single attempts
// and classifies failures; the scheduler owns retry policy.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpx"
)

// Capability is the scheduler capability name for this provider.
const Capability = "text-generation"

const defaultHTTPTimeout = 120 * time.Second

// Client talks to the chat completion endpoint.
type Client struct {
	cfg        config.TextGen
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a text generation client.
func NewClient(cfg config.TextGen, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Some providers return the streaming schema even when
		// stream=false, so tolerate delta as a fallback.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteJSON issues a JSON-only completion and returns the raw
// payload produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrConfiguration, Capability, "complete", "system and user prompts required", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, Capability, "complete", "api key required", nil)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, Capability, "complete", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, Capability, "complete", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", httpx.Classify(Capability, "complete", err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return "", httpx.Classify(Capability, "complete", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, Capability, "complete", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrTransient, Capability, "complete", "api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	content := extractContent(completion)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, Capability, "complete",
			fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", extractFinishReason(completion), extractRefusal(completion)), nil)
	}
	return content, nil
}

// CompleteInto issues a completion and decodes the payload into
// target. Schema mismatches surface as validation errors so the
// quality gate, not the scheduler, drives re-generation.
func (c *Client) CompleteInto(ctx context.Context, systemPrompt, userPrompt string, target any) error {
	content, err := c.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	if err := DecodeJSON(content, target); err != nil {
		return services.Wrap(services.ErrValidation, Capability, "complete", "decode payload", err)
	}
	return nil
}

// HealthCheck verifies the API key and model respond at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrValidation, Capability, "health", "parse payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrValidation, Capability, "health", "unexpected response", nil)
	}
	return nil
}

func extractContent(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content
		}
		if content := strings.TrimSpace(choice.Delta.Content); content != "" {
			return content
		}
	}
	return ""
}

func extractFinishReason(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if reason := strings.TrimSpace(choice.FinishReason); reason != "" {
			return reason
		}
	}
	return ""
}

func extractRefusal(completion chatResponse) string {
	for _, choice := range completion.Choices {
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}
