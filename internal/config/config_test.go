package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"leadflow/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("LEADFLOW_LLM_API_KEY", "test-key")
	t.Setenv("GROQ_API_KEY", "other-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "leadflow")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.LedgerPath() != filepath.Join(wantState, "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Fatalf("unexpected default model: %q", cfg.LLM.Model)
	}
	if cfg.Dispatch.Mode != config.DispatchModeOutbox {
		t.Fatalf("expected outbox dispatch by default, got %q", cfg.Dispatch.Mode)
	}
	if cfg.Workflow.MaxAttempts != 3 {
		t.Fatalf("unexpected max attempts: %d", cfg.Workflow.MaxAttempts)
	}
	if len(cfg.Rules.Keywords) == 0 || cfg.Rules.Keywords[0] != "brochure" {
		t.Fatalf("expected default keywords, got %v", cfg.Rules.Keywords)
	}
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	for _, key := range []string{"LEADFLOW_LLM_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when api key missing")
	}
	if !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "leadflow.toml")

	custom := config.Default()
	custom.LLM.APIKey = "from-file"
	custom.Paths.StateDir = "~/state"
	custom.Rules.Keywords = []string{"  Brochure ", "brochure", "Catalogue"}
	custom.Workflow.Workers = 4
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file %q to be resolved, got %q (exists=%v)", path, resolved, exists)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.StateDir != filepath.Join(home, "state") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.StateDir)
	}
	if got := strings.Join(cfg.Rules.Keywords, ","); got != "brochure,catalogue" {
		t.Fatalf("expected normalized keywords, got %q", got)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected workers 4, got %d", cfg.Workflow.Workers)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadDispatch(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Dispatch.Mode = config.DispatchModeSMTP
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "smtp_host") {
		t.Fatalf("expected smtp_host error, got %v", err)
	}

	cfg.Dispatch.SMTPHost = "smtp.example.com"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "from_address") {
		t.Fatalf("expected from_address error, got %v", err)
	}

	cfg.Dispatch.FromAddress = "sales@example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid smtp config, got %v", err)
	}

	cfg.Dispatch.Mode = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestValidateTelegramRequiresBothFields(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Notifications.TelegramBotToken = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected telegram pairing error")
	}
	cfg.Notifications.TelegramChatID = "42"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LEADFLOW_LLM_API_KEY", "sample-key")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.LLM.APIKey != "sample-key" {
		t.Fatalf("expected env fallback for empty sample key, got %q", cfg.LLM.APIKey)
	}
	if len(cfg.Rules.SystemSenderMarkers) == 0 {
		t.Fatal("expected default system markers to survive sample load")
	}
}

func TestEnsureDirectoriesCreatesOutbox(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfg.Source.InboxDir = filepath.Join(base, "inbox")
	cfg.Dispatch.OutboxDir = filepath.Join(base, "outbox")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.ArtifactDir, cfg.Source.InboxDir, cfg.Dispatch.OutboxDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
