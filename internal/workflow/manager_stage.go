package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"leadflow/internal/audit"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/stage"
)

// Reasons recorded by the manager itself.
const (
	ReasonIllegalReject      = "illegal-reject"
	ReasonDegradedSuppressed = "degraded-suppressed"
	ReasonStageTimeout       = "stage timed out"
	ReasonNoExecutor         = "no executor configured"
)

// processRecord runs the next stage of one record. Cancellation is only
// honoured before the stage starts; once started, the stage and its commits
// run to completion bounded by the stage timeout.
func (m *Manager) processRecord(ctx context.Context, id string) result {
	if ctx.Err() != nil {
		return resultSkipped
	}
	ctx = context.WithoutCancel(ctx)

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(services.WithItemID(ctx, id), m.logger), "failed to load record", "ledger_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger database access"),
		)
		return resultError
	}
	next, ok := rec.NextStage()
	if !ok {
		return resultSkipped
	}

	ctx = services.WithStage(services.WithItemID(ctx, rec.ID), string(next))
	logger := logging.WithContext(ctx, m.logger)

	exec := m.stages[next]
	if exec == nil {
		logging.ErrorWithContext(logger, "no executor for stage", "stage_unconfigured",
			logging.String(logging.FieldErrorHint, "register every stage in the workflow StageSet"),
		)
		return m.apply(ctx, logger, rec, next, stage.Fatal(ReasonNoExecutor, nil))
	}

	if next == ledger.StageDispatch {
		if m.suppressDegraded && strings.TrimSpace(rec.Field("degraded_fields")) != "" {
			return m.apply(ctx, logger, rec, next, stage.Fatal(ReasonDegradedSuppressed, nil))
		}
		attempted, err := m.store.Commit(ctx, ledger.Transition{
			ID:       rec.ID,
			Expected: rec.Status,
			Revision: rec.Revision,
			Next:     ledger.StatusDispatchAttempted,
			Stage:    next,
		})
		if err != nil {
			return m.commitFailed(logger, err)
		}
		m.audit.Append(ctx, m.event(ctx, audit.KindDispatchAttempted, attempted, next, ""))
		rec = attempted
	}

	outcome, timedOut := m.runStage(ctx, logger, exec, rec)
	if next == ledger.StageDispatch && timedOut && outcome.Kind != stage.KindAdvance {
		return m.leaveAmbiguous(ctx, logger, rec)
	}
	return m.apply(ctx, logger, rec, next, outcome)
}

// leaveAmbiguous keeps rec in dispatch_attempted after a send outlived the
// stage timeout. The send may still complete, so only reconcile resolves it.
func (m *Manager) leaveAmbiguous(ctx context.Context, logger *slog.Logger, rec *ledger.Record) result {
	logging.WarnWithContext(logger, "dispatch timed out with outcome unknown", "ambiguous_dispatch",
		logging.Alert("ambiguous_dispatch"),
		logging.Duration("stage_timeout", m.stageTimeout),
		logging.String(logging.FieldImpact, "reply may or may not have been sent"),
		logging.String(logging.FieldErrorHint, "resolve with 'leadflow ledger reconcile "+rec.ID+" --sent' or '--not-sent'"),
	)
	m.audit.Append(ctx, m.event(ctx, audit.KindAmbiguousDispatch, rec, ledger.StageDispatch, ReasonStageTimeout))
	return resultAmbiguous
}

// runStage executes exec under the stage timeout. Panics and executors that
// ignore cancellation are turned into outcomes here. The second result
// reports whether the stage deadline passed before an outcome was taken.
func (m *Manager) runStage(ctx context.Context, logger *slog.Logger, exec stage.Executor, rec *ledger.Record) (stage.Outcome, bool) {
	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldStatus, string(rec.Status)),
		logging.Int("attempt", rec.AttemptCount(exec.Stage())+1),
	)

	stageCtx := ctx
	cancel := func() {}
	if m.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, m.stageTimeout)
	}
	defer cancel()

	done := make(chan stage.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(logger, "stage panicked", "stage_panic",
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
				)
				done <- stage.Fatal(fmt.Sprintf("panic: %v", r), nil)
			}
		}()
		done <- exec.Execute(stageCtx, rec.Clone())
	}()

	var outcome stage.Outcome
	select {
	case outcome = <-done:
	case <-stageCtx.Done():
		outcome = stage.Retryable(ReasonStageTimeout, stageCtx.Err())
	}
	timedOut := errors.Is(stageCtx.Err(), context.DeadlineExceeded)
	if outcome.Kind == "" {
		outcome = stage.Fatal("executor returned no outcome", nil)
	}

	attrs := []logging.Attr{
		logging.String("outcome", string(outcome.Kind)),
		logging.Duration("stage_duration", time.Since(started)),
	}
	switch outcome.Kind {
	case stage.KindAdvance:
		logger.Info("stage completed", logging.Args(append(attrs, logging.String(logging.FieldEventType, "stage_complete"))...)...)
	case stage.KindReject:
		logger.Info("stage completed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("reason", outcome.Reason),
		)...)...)
	default:
		details := services.Details(outcome.Err)
		attrs = append(attrs,
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("reason", outcome.Reason),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
		)
		if outcome.Err != nil {
			attrs = append(attrs, logging.Error(outcome.Err))
		}
		logger.Warn("stage failed", logging.Args(attrs...)...)
	}
	return outcome, timedOut
}

// apply commits outcome for rec, which is in the state the stage read.
func (m *Manager) apply(ctx context.Context, logger *slog.Logger, rec *ledger.Record, st ledger.Stage, outcome stage.Outcome) result {
	t := ledger.Transition{
		ID:       rec.ID,
		Expected: rec.Status,
		Revision: rec.Revision,
		Stage:    st,
	}

	if outcome.Kind == stage.KindReject && st != ledger.StageValidate {
		outcome = stage.Fatal(ReasonIllegalReject, nil)
	}

	kind := audit.KindAdvanced
	var r result
	switch outcome.Kind {
	case stage.KindAdvance:
		next, _ := ledger.AdvancedStatus(st)
		t.Next = next
		t.Delta = outcome.Fields
		r = resultAdvanced
		if next == ledger.StatusDispatched {
			kind, r = audit.KindDispatched, resultDispatched
		}
	case stage.KindReject:
		t.Next = ledger.StatusRejected
		t.Reason = outcome.Reason
		kind, r = audit.KindRejected, resultRejected
	case stage.KindRetryable:
		t.CountAttempt = true
		t.Reason = outcome.Reason
		if rec.AttemptCount(st)+1 >= m.maxAttempts {
			t.Next = ledger.StatusDead
			kind, r = audit.KindDead, resultDead
		} else {
			t.Next = ledger.StatusFailed
			kind, r = audit.KindStageFailed, resultRetried
		}
	default:
		t.Next = ledger.StatusDead
		t.Reason = outcome.Reason
		kind, r = audit.KindDead, resultDead
	}

	committed, err := m.store.Commit(ctx, t)
	if errors.Is(err, ledger.ErrPayloadOverwrite) {
		logging.ErrorWithContext(logger, "stage tried to overwrite payload", "payload_overwrite",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the record with 'leadflow ledger show'"),
		)
		t.Next, t.Delta, t.CountAttempt = ledger.StatusDead, nil, false
		t.Reason = "payload-overwrite: " + err.Error()
		kind, r = audit.KindDead, resultDead
		committed, err = m.store.Commit(ctx, t)
	}
	if err != nil {
		return m.commitFailed(logger, err)
	}

	event := m.event(ctx, kind, committed, st, t.Reason)
	if kind == audit.KindDispatched {
		event.Recipient = committed.Field("dispatched_to")
		event.Company = committed.Field("company_name")
	}
	m.audit.Append(ctx, event)
	if kind == audit.KindDead {
		logging.WarnWithContext(logger, "record is dead", "item_dead",
			logging.String("reason", t.Reason),
			logging.Alert("item_dead"),
			logging.String(logging.FieldImpact, "lead will not be processed further"),
			logging.String(logging.FieldErrorHint, "inspect with 'leadflow ledger show'"),
		)
	}
	return r
}

func (m *Manager) commitFailed(logger *slog.Logger, err error) result {
	if errors.Is(err, ledger.ErrConflict) {
		logger.Debug("record changed concurrently; skipped this tick", logging.Error(err))
		return resultConflict
	}
	logging.ErrorWithContext(logger, "failed to commit outcome", "ledger_commit_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check ledger database access"),
	)
	m.setLastError(err)
	return resultError
}

func (m *Manager) event(ctx context.Context, kind audit.Kind, rec *ledger.Record, st ledger.Stage, reason string) audit.Event {
	event := audit.Event{
		Kind:    kind,
		ItemID:  rec.ID,
		Stage:   string(st),
		Status:  string(rec.Status),
		Reason:  reason,
		Attempt: rec.AttemptCount(st),
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		event.RequestID = rid
	}
	return event
}
