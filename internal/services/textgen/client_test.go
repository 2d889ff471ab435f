package textgen_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/textgen"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *textgen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return textgen.NewClient(config.TextGen{
		APIKey:  "test",
		BaseURL: server.URL,
		Model:   "test-model",
	})
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"ok\"}"}}]}`))
	})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"title":"ok"}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteJSONClassifiesRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit classification, got %v", err)
	}
}

func TestCompleteJSONClassifiesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestCompleteJSONClassifiesBadCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration classification, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("credential failures must not be retried")
	}
}

func TestCompleteIntoDecodesPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n{\\\"count\\\":3}\\n```" + `"}}]}`))
	})
	var parsed struct {
		Count int `json:"count"`
	}
	if err := client.CompleteInto(context.Background(), "system", "user", &parsed); err != nil {
		t.Fatalf("CompleteInto failed: %v", err)
	}
	if parsed.Count != 3 {
		t.Fatalf("unexpected count %d", parsed.Count)
	}
}

func TestCompleteIntoFlagsSchemaMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json at all"}}]}`))
	})
	var parsed struct {
		Count int `json:"count"`
	}
	err := client.CompleteInto(context.Background(), "system", "user", &parsed)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("schema mismatches must not consume scheduler retries")
	}
}

func TestCompleteJSONRequiresPrompts(t *testing.T) {
	client := textgen.NewClient(config.TextGen{APIKey: "test", BaseURL: "http://127.0.0.1:0"})
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Fatal("expected error for missing system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", ""); err == nil {
		t.Fatal("expected error for missing user prompt")
	}
}

func TestDecodeJSONHandlesFencesAndProse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"plain", `{"ok":true}`},
		{"fenced", "```json\n{\"ok\":true}\n```"},
		{"prose wrapped", `Here is the result: {"ok":true} hope it helps`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var parsed struct {
				OK bool `json:"ok"`
			}
			if err := textgen.DecodeJSON(tc.payload, &parsed); err != nil {
				t.Fatalf("DecodeJSON failed: %v", err)
			}
			if !parsed.OK {
				t.Fatal("payload not decoded")
			}
		})
	}
}
