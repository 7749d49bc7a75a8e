package audit

import (
	"context"
	"log/slog"

	"leadflow/internal/logging"
	"leadflow/internal/notifications"
)

// NotifierSink forwards dispatched, dead and ambiguous events to the
// notifications service.
type NotifierSink struct {
	notifier notifications.Service
	logger   *slog.Logger
}

// NewNotifierSink wraps notifier.
func NewNotifierSink(notifier notifications.Service, logger *slog.Logger) *NotifierSink {
	return &NotifierSink{notifier: notifier, logger: logging.NewComponentLogger(logger, "audit")}
}

// Append implements Sink.
func (s *NotifierSink) Append(ctx context.Context, event Event) {
	if s == nil || s.notifier == nil {
		return
	}
	var err error
	switch event.Kind {
	case KindDispatched:
		err = s.notifier.NotifyDispatched(ctx, event.ItemID, event.Recipient, event.Company)
	case KindDead:
		err = s.notifier.NotifyDead(ctx, event.ItemID, event.Stage, event.Reason)
	case KindAmbiguousDispatch:
		err = s.notifier.NotifyAmbiguousDispatch(ctx, event.ItemID)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notify_failed",
			logging.String("kind", string(event.Kind)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not notified"),
		)
	}
}
