package preflight

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"leadflow/internal/config"
	"leadflow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func llmServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "API works!"}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM(t *testing.T) {
	ok := llmServer(t, http.StatusOK)
	if result := CheckLLM(context.Background(), "LLM", config.LLM{APIKey: "k", BaseURL: ok.URL, Model: "m"}); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	denied := llmServer(t, http.StatusUnauthorized)
	if result := CheckLLM(context.Background(), "LLM", config.LLM{APIKey: "bad", BaseURL: denied.URL}); result.Passed {
		t.Fatal("expected failure for rejected key")
	}
	if result := CheckLLM(context.Background(), "LLM", config.LLM{}); result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckSMTP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	addr := listener.Addr().(*net.TCPAddr)

	result := CheckSMTP(context.Background(), config.Dispatch{SMTPHost: "127.0.0.1", SMTPPort: addr.Port})
	if !result.Passed {
		t.Fatalf("expected reachable relay, got %s", result.Detail)
	}
	listener.Close()
	result = CheckSMTP(context.Background(), config.Dispatch{SMTPHost: "127.0.0.1", SMTPPort: addr.Port})
	if result.Passed {
		t.Fatalf("expected closed port %d to fail", addr.Port)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_OutboxConfig(t *testing.T) {
	srv := llmServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithLLMEndpoint(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// four paths, outbox, llm
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %v: %+v", failed, results)
	}
}

func TestRunAll_ReportsMissingConverter(t *testing.T) {
	srv := llmServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithLLMEndpoint(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Render.ConverterCommand = []string{"clearly-not-a-converter", "{input}"}

	results := RunAll(context.Background(), cfg)
	if got := Summary(results); got != "Document converter" {
		t.Fatalf("expected converter failure, got %q", got)
	}
}

func TestCheckNotificationsFromConfig(t *testing.T) {
	cfg := config.Default()
	if r := CheckNotificationsFromConfig(&cfg); r.Detail != "Disabled" {
		t.Fatalf("unexpected detail %q", r.Detail)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/leads"
	cfg.Notifications.TelegramBotToken = "token"
	cfg.Notifications.TelegramChatID = "42"
	if r := CheckNotificationsFromConfig(&cfg); r.Detail != "ntfy, telegram" {
		t.Fatalf("unexpected detail %q", r.Detail)
	}
}

func TestCheckConverter(t *testing.T) {
	cfg := config.Default()
	if _, ok := CheckConverter(&cfg); ok {
		t.Fatal("no converter configured should produce no check")
	}

	binDir := filepath.Join(t.TempDir(), "bin")
	testsupport.StubBinaries(t, binDir, "", "fakeconv")
	cfg.Render.ConverterCommand = []string{"fakeconv", "{input}"}
	result, ok := CheckConverter(&cfg)
	if !ok || !result.Passed || result.Detail != filepath.Join(binDir, "fakeconv") {
		t.Fatalf("expected resolved converter, got %+v", result)
	}

	cfg.Render.ConverterCommand = []string{"  "}
	if result, _ := CheckConverter(&cfg); result.Passed || result.Detail != "command not configured" {
		t.Fatalf("unexpected blank-command result %+v", result)
	}
}
