package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required. Set LEADFLOW_LLM_API_KEY env var or edit %s (create with 'leadflow config init')", defaultPath)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRules() error {
	if len(c.Rules.Keywords) == 0 {
		return errors.New("validate.keywords must contain at least one keyword")
	}
	if c.Enrich.TimeoutSeconds <= 0 {
		return errors.New("enrich.timeout_seconds must be positive")
	}
	if c.Render.ConverterTimeoutSeconds <= 0 {
		return errors.New("render.converter_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.BatchSize <= 0 {
		return errors.New("workflow.batch_size must be positive")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		return errors.New("workflow.stage_timeout_seconds must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	switch c.Dispatch.Mode {
	case DispatchModeOutbox:
		if c.Dispatch.OutboxDir == "" {
			return errors.New("dispatch.outbox_dir must be set when dispatch.mode is outbox")
		}
	case DispatchModeSMTP:
		if c.Dispatch.SMTPHost == "" {
			return errors.New("dispatch.smtp_host must be set when dispatch.mode is smtp")
		}
		if c.Dispatch.SMTPPort <= 0 || c.Dispatch.SMTPPort > 65535 {
			return errors.New("dispatch.smtp_port must be between 1 and 65535")
		}
		if c.Dispatch.FromAddress == "" {
			return errors.New("dispatch.from_address must be set when dispatch.mode is smtp")
		}
	default:
		return fmt.Errorf("dispatch.mode: unsupported value %q (want outbox or smtp)", c.Dispatch.Mode)
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		return errors.New("dispatch.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if (c.Notifications.TelegramBotToken == "") != (c.Notifications.TelegramChatID == "") {
		return errors.New("notifications.telegram_bot_token and notifications.telegram_chat_id must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
