package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"leadflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.BaseURL = "http://127.0.0.1:0/v1/chat/completions"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Source.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Dispatch.OutboxDir = filepath.Join(base, "outbox")
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Notifications.TelegramBotToken = ""
	cfgVal.Notifications.TelegramChatID = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMEndpoint points the generative-text client at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithWorkers overrides the per-tick worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxAttempts = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub runs script, or exits 0 when script is empty.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		StubBinaries(b.t, filepath.Join(b.baseDir, "bin"), script, names...)
	}
}

// StubBinaries writes executables into dir and prepends dir to PATH for the
// duration of the test.
func StubBinaries(t testing.TB, dir, script string, names ...string) {
	t.Helper()
	if script == "" {
		script = "#!/bin/sh\nexit 0\n"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
