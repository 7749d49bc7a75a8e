package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadflow/internal/services"
)

func writeContent(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCompleteSendsPromptAndSampling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama-3.1-8b-instant" || req.MaxTokens != 600 || req.Temperature != 0.3 {
			t.Errorf("unexpected request settings: %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "Summarize this" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		writeContent(t, w, "  A short summary.  ")
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Model:       "llama-3.1-8b-instant",
		MaxTokens:   600,
		Temperature: 0.3,
	})
	got, err := client.Complete(context.Background(), "Summarize this")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "A short summary." {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestCompleteMapsAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "hello")
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", calls.Load())
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeContent(t, w, "ok")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	got, err := client.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "ok" || calls.Load() != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls.Load())
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After honoured, got %v", slept)
	}
}

func TestCompleteExhaustedRetriesAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryMaxAttempts(2), WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "hello")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestCompleteEmptyContentRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeContent(t, w, "   ")
			return
		}
		writeContent(t, w, "second time")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	got, err := client.Complete(context.Background(), "hello")
	if err != nil || got != "second time" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestCompleteRequiresKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	_, err := client.Complete(context.Background(), "hello")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Complete(ctx, "hello")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeContent(t, w, "API works!")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative values should be rejected")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage should be rejected")
	}
}
