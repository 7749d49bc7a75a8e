package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRules()
	c.normalizeEnrich()
	c.normalizeLLM()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	if err := c.normalizeDispatch(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if c.Source.InboxDir, err = expandPath(c.Source.InboxDir); err != nil {
		return fmt.Errorf("source.inbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRules() {
	c.Rules.Keywords = normalizeList(c.Rules.Keywords)
	c.Rules.SystemSenderMarkers = normalizeList(c.Rules.SystemSenderMarkers)
	c.Rules.SystemContentPhrases = normalizeList(c.Rules.SystemContentPhrases)
	c.Rules.PersonalMailProviders = normalizeList(c.Rules.PersonalMailProviders)
}

func (c *Config) normalizeEnrich() {
	c.Enrich.UserAgent = strings.TrimSpace(c.Enrich.UserAgent)
	if c.Enrich.UserAgent == "" {
		c.Enrich.UserAgent = defaultEnrichUserAgent
	}
	if c.Enrich.MaxBodyBytes <= 0 {
		c.Enrich.MaxBodyBytes = defaultEnrichMaxBodyBytes
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("LEADFLOW_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GROQ_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
}

func (c *Config) normalizeRender() error {
	var err error
	c.Render.TemplatePath = strings.TrimSpace(c.Render.TemplatePath)
	if c.Render.TemplatePath != "" {
		if c.Render.TemplatePath, err = expandPath(c.Render.TemplatePath); err != nil {
			return fmt.Errorf("render.template_path: %w", err)
		}
	}
	command := make([]string, 0, len(c.Render.ConverterCommand))
	for _, part := range c.Render.ConverterCommand {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Render.ConverterCommand = command
	return nil
}

func (c *Config) normalizeDispatch() error {
	c.Dispatch.Mode = strings.ToLower(strings.TrimSpace(c.Dispatch.Mode))
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = DispatchModeOutbox
	}
	var err error
	if c.Dispatch.OutboxDir, err = expandPath(strings.TrimSpace(c.Dispatch.OutboxDir)); err != nil {
		return fmt.Errorf("dispatch.outbox_dir: %w", err)
	}
	c.Dispatch.SMTPHost = strings.TrimSpace(c.Dispatch.SMTPHost)
	c.Dispatch.SMTPUsername = strings.TrimSpace(c.Dispatch.SMTPUsername)
	if c.Dispatch.SMTPPassword == "" {
		if value, ok := os.LookupEnv("LEADFLOW_SMTP_PASSWORD"); ok {
			c.Dispatch.SMTPPassword = value
		}
	}
	c.Dispatch.FromAddress = strings.TrimSpace(c.Dispatch.FromAddress)
	c.Dispatch.SignatureName = strings.TrimSpace(c.Dispatch.SignatureName)
	if c.Dispatch.SignatureName == "" {
		c.Dispatch.SignatureName = defaultSignatureName
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.TelegramBotToken = strings.TrimSpace(c.Notifications.TelegramBotToken)
	if c.Notifications.TelegramBotToken == "" {
		if value, ok := os.LookupEnv("LEADFLOW_TELEGRAM_TOKEN"); ok {
			c.Notifications.TelegramBotToken = strings.TrimSpace(value)
		}
	}
	c.Notifications.TelegramChatID = strings.TrimSpace(c.Notifications.TelegramChatID)
	if c.Notifications.TelegramFlushSeconds <= 0 {
		c.Notifications.TelegramFlushSeconds = defaultTelegramFlushSeconds
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
