package workflow

import (
	"context"
	"fmt"
	"strings"

	"leadflow/internal/audit"
	"leadflow/internal/ledger"
	"leadflow/internal/services"
)

// ReasonNotSent is recorded when an operator confirms an ambiguous dispatch
// never reached the recipient.
const ReasonNotSent = "reconciled-not-sent"

// Reconcile resolves a dispatch_attempted record after an operator has
// checked the mail system. sent commits dispatched; otherwise the record
// becomes failed(dispatch) and is retried on the next tick.
func Reconcile(ctx context.Context, store Ledger, sink audit.Sink, id string, sent bool) (*ledger.Record, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "reconcile", fmt.Sprintf("no record %q", id), nil)
	}
	if rec.Status != ledger.StatusDispatchAttempted {
		return nil, services.Wrap(services.ErrValidation, "ledger", "reconcile",
			fmt.Sprintf("record %s is %s, not %s", id, rec.Status, ledger.StatusDispatchAttempted), nil)
	}

	t := ledger.Transition{
		ID:       rec.ID,
		Expected: rec.Status,
		Revision: rec.Revision,
		Stage:    ledger.StageDispatch,
	}
	detail := "sent"
	if sent {
		t.Next = ledger.StatusDispatched
		t.Delta = ledger.Payload{"dispatched_to": strings.ToLower(strings.TrimSpace(rec.Field("sender_email")))}
	} else {
		t.Next = ledger.StatusFailed
		t.Reason = ReasonNotSent
		detail = "not sent"
	}
	committed, err := store.Commit(ctx, t)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		event := audit.Event{
			Kind:   audit.KindReconciled,
			ItemID: committed.ID,
			Stage:  string(ledger.StageDispatch),
			Status: string(committed.Status),
			Reason: t.Reason,
			Detail: detail,
		}
		if rid, ok := services.RequestIDFromContext(ctx); ok {
			event.RequestID = rid
		}
		sink.Append(ctx, event)
	}
	return committed, nil
}
