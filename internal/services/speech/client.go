// Package speech wraps an ElevenLabs-compatible text-to-speech API
// that returns audio together with character-level timing, which the
// client folds into word timestamps.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"reelforge/internal/config"
	"reelforge/internal/media"
	"reelforge/internal/services"
	"reelforge/internal/services/httpx"
)

// Capability is the scheduler capability name for this provider.
const Capability = "speech-synthesis"

const defaultHTTPTimeout = 300 * time.Second

// Client talks to the text-to-speech endpoint.
type Client struct {
	cfg        config.Speech
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

// NewClient constructs a speech synthesis client.
func NewClient(cfg config.Speech, opts ...Option) *Client {
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

// Narration is one synthesized track: raw audio plus word timings.
type Narration struct {
	Audio []byte
	Words []media.WordTimestamp
}

// DurationMS returns the track length implied by the last word.
func (n Narration) DurationMS() int64 {
	if len(n.Words) == 0 {
		return 0
	}
	return n.Words[len(n.Words)-1].EndMS
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

type synthesizeResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Alignment   struct {
		Characters          []string  `json:"characters"`
		CharacterStartTimes []float64 `json:"character_start_times_seconds"`
		CharacterEndTimes   []float64 `json:"character_end_times_seconds"`
	} `json:"alignment"`
}

// Synthesize renders text to speech and returns the audio with word
// timestamps derived from the provider's character alignment.
func (c *Client) Synthesize(ctx context.Context, text string) (Narration, error) {
	var empty Narration
	text = strings.TrimSpace(text)
	if text == "" {
		return empty, services.Wrap(services.ErrValidation, Capability, "synthesize", "text required", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return empty, services.Wrap(services.ErrConfiguration, Capability, "synthesize", "api key required", nil)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "text-to-speech", c.cfg.Voice, "with-timestamps")
	if err != nil {
		return empty, services.Wrap(services.ErrConfiguration, Capability, "synthesize", "build url", err)
	}
	encoded, err := json.Marshal(synthesizeRequest{Text: text, ModelID: c.cfg.Model})
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, Capability, "synthesize", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, services.Wrap(services.ErrConfiguration, Capability, "synthesize", "build request", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, httpx.Classify(Capability, "synthesize", err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return empty, httpx.Classify(Capability, "synthesize", err)
	}

	var decoded synthesizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, services.Wrap(services.ErrTransient, Capability, "synthesize", "decode response", err)
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioBase64)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, Capability, "synthesize", "decode audio", err)
	}
	if len(audio) == 0 {
		return empty, services.Wrap(services.ErrTransient, Capability, "synthesize", "empty audio", nil)
	}
	words := wordsFromCharacters(decoded.Alignment.Characters, decoded.Alignment.CharacterStartTimes, decoded.Alignment.CharacterEndTimes)
	return Narration{Audio: audio, Words: words}, nil
}

// wordsFromCharacters folds character-level timing into words: each
// run of non-space characters becomes one word spanning its first
// character's start to its last character's end.
func wordsFromCharacters(chars []string, starts, ends []float64) []media.WordTimestamp {
	var words []media.WordTimestamp
	var current strings.Builder
	var startMS int64
	var endMS int64

	flush := func() {
		if current.Len() == 0 {
			return
		}
		words = append(words, media.WordTimestamp{
			Word:    current.String(),
			StartMS: startMS,
			EndMS:   endMS,
		})
		current.Reset()
	}

	for i, char := range chars {
		if i >= len(starts) || i >= len(ends) {
			break
		}
		if isWordBreak(char) {
			flush()
			continue
		}
		if current.Len() == 0 {
			startMS = int64(starts[i] * 1000)
		}
		endMS = int64(ends[i] * 1000)
		current.WriteString(char)
	}
	flush()
	return words
}

func isWordBreak(char string) bool {
	for _, r := range char {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
