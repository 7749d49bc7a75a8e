package workflow

import (
	"context"
	"errors"
	"time"

	"leadflow/internal/audit"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
)

// Start launches the tick loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.reportAmbiguous(runCtx)
	go m.run(runCtx)
	return nil
}

// Stop terminates the tick loop and waits for the current tick to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger
	logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("workers", m.workers),
		logging.Int("batch_size", m.batchSize),
	)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := m.Tick(ctx); err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(logger, "tick failed", "tick_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ledger database access"),
			)
			m.audit.Append(ctx, audit.Event{Kind: audit.KindTickError, Reason: "tick failed", Detail: err.Error()})
			if m.notifier != nil {
				if nerr := m.notifier.NotifyError(ctx, err, "workflow tick"); nerr != nil {
					logger.Debug("tick error notification failed", logging.Error(nerr))
				}
			}
		}
		select {
		case <-ctx.Done():
			logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
			return
		case <-ticker.C:
		}
	}
}

// reportAmbiguous audits every record left in dispatch_attempted. Those
// records are never retried automatically.
func (m *Manager) reportAmbiguous(ctx context.Context) {
	ids, err := m.AmbiguousIDs(ctx)
	if err != nil {
		m.logger.Warn("failed to list ambiguous dispatches", logging.Error(err))
		return
	}
	for _, id := range ids {
		logging.WarnWithContext(m.logger, "dispatch outcome unknown", "ambiguous_dispatch",
			logging.String(logging.FieldItemID, id),
			logging.Alert("ambiguous_dispatch"),
			logging.String(logging.FieldImpact, "reply may or may not have been sent"),
			logging.String(logging.FieldErrorHint, "resolve with 'leadflow ledger reconcile "+id+" --sent' or '--not-sent'"),
		)
		m.audit.Append(ctx, audit.Event{
			Kind:   audit.KindAmbiguousDispatch,
			ItemID: id,
			Stage:  string(ledger.StageDispatch),
			Status: string(ledger.StatusDispatchAttempted),
		})
	}
}
