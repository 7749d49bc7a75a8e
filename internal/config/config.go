package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	ArtifactDir string `toml:"artifact_dir"`
}

// Source configures where inbound messages are read from.
type Source struct {
	InboxDir string `toml:"inbox_dir"`
}

// Rules holds the qualification rules applied to every inbound message.
type Rules struct {
	Keywords              []string `toml:"keywords"`
	SystemSenderMarkers   []string `toml:"system_sender_markers"`
	SystemContentPhrases  []string `toml:"system_content_phrases"`
	PersonalMailProviders []string `toml:"personal_mail_providers"`
}

// Enrich configures the website fetcher.
type Enrich struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
}

// LLM contains the generative-text connection settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Render configures document rendering and the optional conversion tool.
type Render struct {
	TemplatePath            string   `toml:"template_path"`
	ConverterCommand        []string `toml:"converter_command"`
	ConverterTimeoutSeconds int      `toml:"converter_timeout_seconds"`
}

// Dispatch configures how replies leave the system.
type Dispatch struct {
	Mode             string `toml:"mode"`
	OutboxDir        string `toml:"outbox_dir"`
	SMTPHost         string `toml:"smtp_host"`
	SMTPPort         int    `toml:"smtp_port"`
	SMTPUsername     string `toml:"smtp_username"`
	SMTPPassword     string `toml:"smtp_password"`
	FromAddress      string `toml:"from_address"`
	SignatureName    string `toml:"signature_name"`
	SuppressDegraded bool   `toml:"suppress_degraded"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Workflow contains orchestrator timing and budget settings.
type Workflow struct {
	PollInterval        int `toml:"poll_interval"`
	BatchSize           int `toml:"batch_size"`
	Workers             int `toml:"workers"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	MaxAttempts         int `toml:"max_attempts"`
}

// Notifications contains configuration for ntfy and Telegram delivery.
type Notifications struct {
	NtfyTopic            string `toml:"ntfy_topic"`
	TelegramBotToken     string `toml:"telegram_bot_token"`
	TelegramChatID       string `toml:"telegram_chat_id"`
	TelegramFlushSeconds int    `toml:"telegram_flush_seconds"`
	RequestTimeout       int    `toml:"request_timeout"`
	Dispatched           bool   `toml:"dispatched"`
	Dead                 bool   `toml:"dead"`
	Ambiguous            bool   `toml:"ambiguous"`
	Errors               bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for leadflow.
//
// Configuration sections by subsystem:
//   - Paths: ledger/lock state, logs, rendered artifacts
//   - Source: inbound message spool
//   - Rules: qualification keywords and automated-sender filters
//   - Enrich: website fetch limits
//   - LLM: generative-text service connection and sampling
//   - Render: document template and converter command
//   - Dispatch: outbound reply transport and degraded-artifact policy
//   - Workflow: tick interval, batch size, workers, retry budget
//   - Notifications: ntfy and Telegram activity feeds
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Rules         Rules         `toml:"validate"`
	Enrich        Enrich        `toml:"enrich"`
	LLM           LLM           `toml:"llm"`
	Render        Render        `toml:"render"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("leadflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for orchestrator operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.ArtifactDir, c.Source.InboxDir}
	if c.Dispatch.Mode == DispatchModeOutbox {
		dirs = append(dirs, c.Dispatch.OutboxDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "leadflow.lock")
}

// AuditPath returns the append-only audit trail location.
func (c *Config) AuditPath() string {
	return filepath.Join(c.Paths.LogDir, "audit.jsonl")
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// StageTimeout returns the per-stage execution bound.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Workflow.StageTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
