package preflight

import (
	"strings"

	"leadflow/internal/config"
)

// CheckNotificationsFromConfig reports which notification backends are
// configured. It makes no network calls.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown", Optional: true}
	}
	var backends []string
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		backends = append(backends, "ntfy")
	}
	switch {
	case cfg.Notifications.TelegramBotToken != "" && cfg.Notifications.TelegramChatID != "":
		backends = append(backends, "telegram")
	case cfg.Notifications.TelegramBotToken != "":
		return Result{Name: name, Detail: "Telegram chat id missing", Optional: true}
	}
	if len(backends) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled", Optional: true}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(backends, ", "), Optional: true}
}

// CheckDispatchFromConfig describes the configured reply transport.
func CheckDispatchFromConfig(cfg *config.Config) Result {
	const name = "Dispatch"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Dispatch.FromAddress) == "" {
		return Result{Name: name, Detail: "from_address missing"}
	}
	detail := cfg.Dispatch.Mode + " as " + cfg.Dispatch.FromAddress
	if cfg.Dispatch.SuppressDegraded {
		detail += " (degraded replies suppressed)"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
