// Package imagegen wraps an image generation API that renders one
// image per prompt.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpx"
)

// Capability is the scheduler capability name for this provider.
const Capability = "image-generation"

const defaultHTTPTimeout = 300 * time.Second

// Client talks to the image generation endpoint.
type Client struct {
	cfg        config.ImageGen
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

// NewClient constructs an image generation client.
func NewClient(cfg config.ImageGen, opts ...Option) *Client {
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

type generateRequest struct {
	Model       string `json:"model,omitempty"`
	Prompt      string `json:"prompt"`
	Orientation string `json:"orientation,omitempty"`
}

type generateResponse struct {
	ImageBase64 string `json:"image_base64"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders one image for the prompt and returns its bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrValidation, Capability, "generate", "prompt required", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "generate", "api key required", nil)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "images", "generations")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "generate", "build url", err)
	}
	encoded, err := json.Marshal(generateRequest{
		Model:       c.cfg.Model,
		Prompt:      prompt,
		Orientation: c.cfg.Orientation,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Capability, "generate", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "generate", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, httpx.Classify(Capability, "generate", err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, httpx.Classify(Capability, "generate", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, Capability, "generate", "decode response", err)
	}
	if decoded.Error != nil {
		return nil, services.Wrap(services.ErrTransient, Capability, "generate", "api error: "+strings.TrimSpace(decoded.Error.Message), nil)
	}
	image, err := base64.StdEncoding.DecodeString(decoded.ImageBase64)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Capability, "generate", "decode image", err)
	}
	if len(image) == 0 {
		return nil, services.Wrap(services.ErrTransient, Capability, "generate", "empty image", nil)
	}
	return image, nil
}
