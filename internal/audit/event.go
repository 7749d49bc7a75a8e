package audit

import (
	"context"
	"time"
)

// Kind classifies an audit event.
type Kind string

const (
	KindCreated           Kind = "created"
	KindAdvanced          Kind = "advanced"
	KindRejected          Kind = "rejected"
	KindStageFailed       Kind = "stage_failed"
	KindDead              Kind = "dead"
	KindDispatchAttempted Kind = "dispatch_attempted"
	KindDispatched        Kind = "dispatched"
	KindAmbiguousDispatch Kind = "ambiguous_dispatch"
	KindReconciled        Kind = "reconciled"
	KindTickError         Kind = "tick_error"
)

// FailureKinds lists the kinds that make up the failed-steps log.
func FailureKinds() []Kind {
	return []Kind{KindStageFailed, KindDead, KindAmbiguousDispatch, KindTickError}
}

// Event is one line of the audit trail.
type Event struct {
	Time      time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	ItemID    string    `json:"item_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Company   string    `json:"company,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink receives audit events.
type Sink interface {
	Append(ctx context.Context, event Event)
}

// Fanout forwards each event to every sink in order.
type Fanout []Sink

// Append implements Sink.
func (f Fanout) Append(ctx context.Context, event Event) {
	for _, sink := range f {
		if sink != nil {
			sink.Append(ctx, event)
		}
	}
}

// Discard drops every event.
type Discard struct{}

// Append implements Sink.
func (Discard) Append(context.Context, Event) {}
