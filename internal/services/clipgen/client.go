// Package clipgen wraps a video clip synthesis API that animates a
// still image over a motion prompt for a fixed duration.
package clipgen

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
const Capability = "clip-generation"

const defaultHTTPTimeout = 600 * time.Second

// Client talks to the clip synthesis endpoint.
type Client struct {
	cfg        config.ClipGen
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

// NewClient constructs a clip synthesis client.
func NewClient(cfg config.ClipGen, opts ...Option) *Client {
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

type animateRequest struct {
	Model       string `json:"model,omitempty"`
	ImageBase64 string `json:"image_base64"`
	Motion      string `json:"motion"`
	DurationMS  int64  `json:"duration_ms"`
}

type animateResponse struct {
	VideoBase64 string `json:"video_base64"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Animate renders a moving clip from a still image and returns its
// bytes.
func (c *Client) Animate(ctx context.Context, image []byte, motion string, durationMS int64) ([]byte, error) {
	if len(image) == 0 {
		return nil, services.Wrap(services.ErrValidation, Capability, "animate", "image required", nil)
	}
	if durationMS <= 0 {
		return nil, services.Wrap(services.ErrValidation, Capability, "animate", "duration required", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "animate", "api key required", nil)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "videos", "animations")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "animate", "build url", err)
	}
	encoded, err := json.Marshal(animateRequest{
		Model:       c.cfg.Model,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Motion:      strings.TrimSpace(motion),
		DurationMS:  durationMS,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Capability, "animate", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Capability, "animate", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, httpx.Classify(Capability, "animate", err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, httpx.Classify(Capability, "animate", err)
	}

	var decoded animateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, Capability, "animate", "decode response", err)
	}
	if decoded.Error != nil {
		return nil, services.Wrap(services.ErrTransient, Capability, "animate", "api error: "+strings.TrimSpace(decoded.Error.Message), nil)
	}
	video, err := base64.StdEncoding.DecodeString(decoded.VideoBase64)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Capability, "animate", "decode video", err)
	}
	if len(video) == 0 {
		return nil, services.Wrap(services.ErrTransient, Capability, "animate", "empty video", nil)
	}
	return video, nil
}
