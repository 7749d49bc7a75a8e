package workflow

import (
	"context"
	"time"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/stage"
)

// StatusSummary exposes orchestrator state for the CLI.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastTick    *TickSummary
	LastTickAt  time.Time
	Ticks       int
	Stats       map[ledger.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the current manager state, ledger counts and stage health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		LastTickAt: m.lastTickAt,
		Ticks:      m.ticks,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastTick != nil {
		last := *m.lastTick
		summary.LastTick = &last
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read ledger stats", logging.Error(err))
	}
	summary.Stats = stats

	summary.StageHealth = make(map[string]stage.Health, len(m.stages))
	for _, st := range ledger.AllStages() {
		exec := m.stages[st]
		if exec == nil {
			summary.StageHealth[string(st)] = stage.Unhealthy(string(st), ReasonNoExecutor)
			continue
		}
		if checker, ok := exec.(stage.HealthChecker); ok {
			summary.StageHealth[string(st)] = checker.HealthCheck(ctx)
			continue
		}
		summary.StageHealth[string(st)] = stage.Healthy(string(st))
	}
	return summary
}

// AmbiguousIDs lists records awaiting manual dispatch reconciliation.
func (m *Manager) AmbiguousIDs(ctx context.Context) ([]string, error) {
	return m.store.List(ctx, 0, ledger.StatusDispatchAttempted)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
