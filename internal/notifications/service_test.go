package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"leadflow/internal/config"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyDead(context.Background(), "a", "enrich", "timeout"); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
}

type ntfyRequest struct {
	title, tags, priority, body string
}

func ntfyServer(t *testing.T) (*httptest.Server, func() []ntfyRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []ntfyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, ntfyRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)
	return server, func() []ntfyRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]ntfyRequest(nil), got...)
	}
}

func TestNtfyFormatsEvents(t *testing.T) {
	server, requests := ntfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyDispatched(ctx, "abc", "jane@acme-tools.com", "Acme Tools"); err != nil {
		t.Fatalf("NotifyDispatched: %v", err)
	}
	if err := svc.NotifyDead(ctx, "abc", "enrich", "timeout"); err != nil {
		t.Fatalf("NotifyDead: %v", err)
	}
	if err := svc.NotifyAmbiguousDispatch(ctx, "abc"); err != nil {
		t.Fatalf("NotifyAmbiguousDispatch: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("ledger locked"), "tick"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	got := requests()
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	if got[0].title != "leadflow - Reply Sent" || !strings.Contains(got[0].body, "jane@acme-tools.com (Acme Tools)") {
		t.Fatalf("unexpected dispatched payload %+v", got[0])
	}
	if got[1].priority != "high" || !strings.Contains(got[1].body, "stopped at enrich: timeout") {
		t.Fatalf("unexpected dead payload %+v", got[1])
	}
	if !strings.Contains(got[2].body, "leadflow ledger reconcile abc") {
		t.Fatalf("ambiguous payload should name the reconcile command: %+v", got[2])
	}
	if got[3].tags != "leadflow,error,alert" || !strings.Contains(got[3].body, "with tick: ledger locked") {
		t.Fatalf("unexpected error payload %+v", got[3])
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	server, requests := ntfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Dispatched = false

	svc := NewService(&cfg)
	if err := svc.NotifyDispatched(context.Background(), "abc", "jane@acme-tools.com", ""); err != nil {
		t.Fatalf("NotifyDispatched: %v", err)
	}
	if len(requests()) != 0 {
		t.Fatal("disabled event should not be delivered")
	}
	if err := svc.TestNotification(context.Background()); err != nil || len(requests()) != 1 {
		t.Fatalf("test notifications are always delivered: %v", err)
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTelegramBuffersAndSplits(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botsecret/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["chat_id"] != "42" {
			t.Errorf("unexpected chat id %q", body["chat_id"])
		}
		mu.Lock()
		texts = append(texts, body["text"])
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.TelegramBotToken = "secret"
	cfg.Notifications.TelegramChatID = "42"
	n := New(&cfg)
	if n == nil || n.telegram == nil {
		t.Fatal("expected telegram backend")
	}
	n.telegram.apiBase = server.URL

	ctx := context.Background()
	reason := strings.Repeat("x", 3000)
	for _, id := range []string{"a", "b"} {
		if err := n.NotifyDead(ctx, id, "generate", reason); err != nil {
			t.Fatalf("NotifyDead: %v", err)
		}
	}
	mu.Lock()
	if len(texts) != 0 {
		t.Fatal("telegram messages must be buffered until flush")
	}
	mu.Unlock()

	if err := n.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(texts))
	}
	for _, text := range texts {
		if len([]rune(text)) > TelegramMessageLimit {
			t.Fatalf("chunk exceeds limit: %d", len([]rune(text)))
		}
	}
	if err := n.Flush(ctx); err != nil || len(texts) != 2 {
		t.Fatalf("second flush should be empty: %v", err)
	}
}

func telegramNotifier(t *testing.T, apiBase string) *Notifier {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.TelegramBotToken = "123456:secret-bot-token"
	cfg.Notifications.TelegramChatID = "42"
	n := New(&cfg)
	if n == nil || n.telegram == nil {
		t.Fatal("expected telegram backend")
	}
	n.telegram.apiBase = apiBase
	return n
}

func TestTelegramSendErrorOmitsToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	n := telegramNotifier(t, base)
	if err := n.NotifyDead(context.Background(), "a", "enrich", "timeout"); err != nil {
		t.Fatalf("NotifyDead: %v", err)
	}
	err := n.Flush(context.Background())
	if err == nil {
		t.Fatal("expected flush to fail against a closed server")
	}
	if strings.Contains(err.Error(), "secret-bot-token") {
		t.Fatalf("error leaks the bot token: %v", err)
	}
	if !strings.Contains(err.Error(), strings.TrimPrefix(base, "http://")) {
		t.Fatalf("error should name the api host: %v", err)
	}
}

func TestRunLogsFlushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	n := telegramNotifier(t, server.URL)
	if err := n.NotifyAmbiguousDispatch(context.Background(), "a"); err != nil {
		t.Fatalf("NotifyAmbiguousDispatch: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx, time.Hour, logger)

	out := buf.String()
	if !strings.Contains(out, "telegram flush failed") || !strings.Contains(out, "telegram returned 401") {
		t.Fatalf("expected logged flush failure, got %q", out)
	}
	if strings.Contains(out, "secret-bot-token") {
		t.Fatalf("log leaks the bot token: %q", out)
	}
}
