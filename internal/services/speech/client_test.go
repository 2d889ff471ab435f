package speech_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/speech"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *speech.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return speech.NewClient(config.Speech{
		APIKey:  "test",
		BaseURL: server.URL,
		Voice:   "narrator",
	})
}

func alignmentPayload(audio []byte, text string, stepSeconds float64) []byte {
	chars := strings.Split(text, "")
	starts := make([]float64, len(chars))
	ends := make([]float64, len(chars))
	for i := range chars {
		starts[i] = float64(i) * stepSeconds
		ends[i] = float64(i+1) * stepSeconds
	}
	payload := map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
		"alignment": map[string]any{
			"characters":                    chars,
			"character_start_times_seconds": starts,
			"character_end_times_seconds":   ends,
		},
	}
	encoded, _ := json.Marshal(payload)
	return encoded
}

func TestSynthesizeReturnsAudioAndWords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v1/text-to-speech/narrator/with-timestamps") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Write(alignmentPayload([]byte("fake-mp3"), "hi go", 0.1))
	})
	narration, err := client.Synthesize(context.Background(), "hi go")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(narration.Audio) != "fake-mp3" {
		t.Fatalf("unexpected audio %q", narration.Audio)
	}
	if len(narration.Words) != 2 {
		t.Fatalf("expected 2 words, got %d: %+v", len(narration.Words), narration.Words)
	}
	first := narration.Words[0]
	if first.Word != "hi" || first.StartMS != 0 || first.EndMS != 200 {
		t.Fatalf("unexpected first word %+v", first)
	}
	second := narration.Words[1]
	if second.Word != "go" || second.StartMS != 300 || second.EndMS != 500 {
		t.Fatalf("unexpected second word %+v", second)
	}
	if narration.DurationMS() != 500 {
		t.Fatalf("unexpected duration %d", narration.DurationMS())
	}
}

func TestSynthesizeClassifiesRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Synthesize(context.Background(), "hello")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit classification, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := client.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(alignmentPayload(nil, "hi", 0.1))
	})
	_, err := client.Synthesize(context.Background(), "hi")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification for empty audio, got %v", err)
	}
}
