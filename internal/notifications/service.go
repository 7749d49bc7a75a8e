package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/logging"
)

const userAgent = "leadflow/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDispatched(ctx context.Context, itemID, recipient, company string) error
	NotifyDead(ctx context.Context, itemID, stage, reason string) error
	NotifyAmbiguousDispatch(ctx context.Context, itemID string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// Event names a notification category for per-category toggles.
type Event string

const (
	EventDispatched Event = "dispatched"
	EventDead       Event = "dead"
	EventAmbiguous  Event = "ambiguous"
	EventError      Event = "error"
	EventTest       Event = "test"
)

type payload struct {
	event    Event
	title    string
	message  string
	tags     []string
	priority string
}

// backend delivers one formatted payload.
type backend interface {
	send(ctx context.Context, data payload) error
}

// Notifier formats events and fans them out to every configured backend.
type Notifier struct {
	backends []backend
	enabled  map[Event]bool
	telegram *telegramBackend
}

// NewService builds a notifier from cfg. With no backend configured a noop
// implementation is returned.
func NewService(cfg *config.Config) Service {
	n := New(cfg)
	if n == nil {
		return noopService{}
	}
	return n
}

// New builds a Notifier, or nil when no backend is configured.
func New(cfg *config.Config) *Notifier {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	n := &Notifier{
		enabled: map[Event]bool{
			EventDispatched: cfg.Notifications.Dispatched,
			EventDead:       cfg.Notifications.Dead,
			EventAmbiguous:  cfg.Notifications.Ambiguous,
			EventError:      cfg.Notifications.Errors,
			EventTest:       true,
		},
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		n.backends = append(n.backends, &ntfyBackend{endpoint: topic, client: client})
	}
	if token := cfg.Notifications.TelegramBotToken; token != "" && cfg.Notifications.TelegramChatID != "" {
		n.telegram = newTelegramBackend(token, cfg.Notifications.TelegramChatID, client)
		n.backends = append(n.backends, n.telegram)
	}
	if len(n.backends) == 0 {
		return nil
	}
	return n
}

// Run flushes buffered Telegram messages every interval until ctx is done,
// then flushes once more. Flush failures are logged to logger.
func (n *Notifier) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if n == nil || n.telegram == nil {
		<-ctx.Done()
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			n.logFlush(logger, n.telegram.Flush(flushCtx))
			cancel()
			return
		case <-ticker.C:
			n.logFlush(logger, n.telegram.Flush(ctx))
		}
	}
}

func (n *Notifier) logFlush(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "telegram flush failed", "notify_flush_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "buffered notifications were dropped"),
		logging.String(logging.FieldErrorHint, "check notifications.telegram_bot_token and telegram_chat_id"),
	)
}

// Flush delivers any buffered messages now.
func (n *Notifier) Flush(ctx context.Context) error {
	if n == nil || n.telegram == nil {
		return nil
	}
	return n.telegram.Flush(ctx)
}

func (n *Notifier) NotifyDispatched(ctx context.Context, itemID, recipient, company string) error {
	message := fmt.Sprintf("📨 Reply sent to %s", strings.TrimSpace(recipient))
	if company = strings.TrimSpace(company); company != "" {
		message += fmt.Sprintf(" (%s)", company)
	}
	return n.publish(ctx, payload{
		event:   EventDispatched,
		title:   "leadflow - Reply Sent",
		message: message + "\nItem: " + itemID,
		tags:    []string{"leadflow", "dispatch", "sent"},
	})
}

func (n *Notifier) NotifyDead(ctx context.Context, itemID, stage, reason string) error {
	return n.publish(ctx, payload{
		event:    EventDead,
		title:    "leadflow - Lead Dead",
		message:  fmt.Sprintf("🪦 %s stopped at %s: %s", itemID, strings.TrimSpace(stage), strings.TrimSpace(reason)),
		tags:     []string{"leadflow", "dead", "review"},
		priority: "high",
	})
}

func (n *Notifier) NotifyAmbiguousDispatch(ctx context.Context, itemID string) error {
	return n.publish(ctx, payload{
		event:    EventAmbiguous,
		title:    "leadflow - Ambiguous Dispatch",
		message:  fmt.Sprintf("⚠️ %s may or may not have been sent\nResolve with: leadflow ledger reconcile %s --sent|--not-sent", itemID, itemID),
		tags:     []string{"leadflow", "dispatch", "review"},
		priority: "high",
	})
}

func (n *Notifier) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.publish(ctx, payload{
		event:    EventError,
		title:    "leadflow - Error",
		message:  builder.String(),
		tags:     []string{"leadflow", "error", "alert"},
		priority: "high",
	})
}

func (n *Notifier) TestNotification(ctx context.Context) error {
	if err := n.publish(ctx, payload{
		event:    EventTest,
		title:    "leadflow - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"leadflow", "test"},
		priority: "low",
	}); err != nil {
		return err
	}
	return n.Flush(ctx)
}

func (n *Notifier) publish(ctx context.Context, data payload) error {
	if n == nil || !n.enabled[data.event] {
		return nil
	}
	var errs []error
	for _, b := range n.backends {
		if err := b.send(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) NotifyDispatched(context.Context, string, string, string) error { return nil }
func (noopService) NotifyDead(context.Context, string, string, string) error       { return nil }
func (noopService) NotifyAmbiguousDispatch(context.Context, string) error          { return nil }
func (noopService) NotifyError(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
