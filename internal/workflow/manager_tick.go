package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadflow/internal/audit"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
)

// Tick runs one polling cycle: ingest new messages, then run one stage for
// each eligible record in the batch. Per-record failures are logged and
// audited; the returned error is reserved for failures that stop the tick
// from listing work.
func (m *Manager) Tick(ctx context.Context) (TickSummary, error) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	summary := TickSummary{RequestID: uuid.NewString(), StartedAt: time.Now().UTC()}
	ctx = services.WithRequestID(ctx, summary.RequestID)
	logger := logging.WithContext(ctx, m.logger)

	m.ingest(ctx, &summary)

	ids, err := m.store.List(ctx, m.batchSize, ledger.EligibleStatuses()...)
	if err != nil {
		err = fmt.Errorf("list eligible records: %w", err)
		m.finishTick(&summary, err)
		return summary, err
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(m.workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			r := m.processRecord(ctx, id)
			mu.Lock()
			summary.add(r)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if stats, err := m.store.Stats(ctx); err == nil {
		summary.Ambiguous = stats[ledger.StatusDispatchAttempted]
	} else {
		logger.Warn("ledger stats unavailable", logging.Error(err))
	}

	m.finishTick(&summary, ctx.Err())
	logger.Info("tick completed",
		logging.String(logging.FieldEventType, "tick_complete"),
		logging.Int("observed", summary.Observed),
		logging.Int("created", summary.Created),
		logging.Int("processed", summary.Processed),
		logging.Int("advanced", summary.Advanced),
		logging.Int("rejected", summary.Rejected),
		logging.Int("retried", summary.Retried),
		logging.Int("dead", summary.Dead),
		logging.Int("dispatched", summary.Dispatched),
		logging.Int("conflicts", summary.Conflicts),
		logging.Int("ambiguous", summary.Ambiguous),
		logging.Duration("tick_duration", summary.Duration),
	)
	return summary, ctx.Err()
}

func (m *Manager) ingest(ctx context.Context, summary *TickSummary) {
	if m.source == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	messages, err := m.source.FetchNew(ctx)
	if err != nil {
		summary.Errors++
		logging.WarnWithContext(logger, "message source poll failed", "source_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
			logging.String(logging.FieldImpact, "new messages picked up on a later tick"),
		)
		m.audit.Append(ctx, audit.Event{Kind: audit.KindTickError, RequestID: summary.RequestID, Reason: "source poll failed", Detail: err.Error()})
	}
	summary.Observed = len(messages)
	for _, msg := range messages {
		if _, err := m.store.Create(ctx, msg.ID, msg.Intake()); err != nil {
			if errors.Is(err, ledger.ErrAlreadyExists) {
				continue
			}
			summary.Errors++
			logger.Error("failed to record message",
				logging.String(logging.FieldItemID, msg.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_create_failed"),
				logging.String(logging.FieldErrorHint, "check ledger database access"),
			)
			continue
		}
		summary.Created++
		logger.Info("message recorded",
			logging.String(logging.FieldItemID, msg.ID),
			logging.String(logging.FieldEventType, "item_created"),
		)
		m.audit.Append(ctx, audit.Event{Kind: audit.KindCreated, ItemID: msg.ID, Status: string(ledger.StatusSeen), RequestID: summary.RequestID})
	}
}

func (m *Manager) finishTick(summary *TickSummary, err error) {
	summary.Duration = time.Since(summary.StartedAt)
	snapshot := *summary
	m.mu.Lock()
	m.lastTick = &snapshot
	m.lastTickAt = time.Now()
	m.ticks++
	m.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		m.setLastError(err)
	}
}
