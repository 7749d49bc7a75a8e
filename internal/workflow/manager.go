package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"leadflow/internal/audit"
	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/notifications"
	"leadflow/internal/source"
	"leadflow/internal/stage"
)

// Manager coordinates ticks over the ledger using registered stage executors.
type Manager struct {
	store    Ledger
	source   source.Source
	logger   *slog.Logger
	audit    audit.Sink
	notifier notifications.Service

	stages           map[ledger.Stage]stage.Executor
	pollInterval     time.Duration
	stageTimeout     time.Duration
	batchSize        int
	workers          int
	maxAttempts      int
	suppressDegraded bool

	tickMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastTick   *TickSummary
	ticks      int
	lastTickAt time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithAudit sets the audit sink. The default discards events.
func WithAudit(sink audit.Sink) ManagerOption {
	return func(m *Manager) {
		if sink != nil {
			m.audit = sink
		}
	}
}

// WithNotifier sets the service used for tick error notifications.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithStageTimeout overrides the per-stage execution bound.
func WithStageTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.stageTimeout = d
		}
	}
}

// WithPollInterval overrides the tick interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// NewManager constructs a workflow manager for the stages in set.
func NewManager(cfg *config.Config, store Ledger, src source.Source, set StageSet, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:            store,
		source:           src,
		logger:           logging.NewComponentLogger(logger, "workflow"),
		audit:            audit.Discard{},
		stages:           set.byStage(),
		pollInterval:     cfg.PollInterval(),
		stageTimeout:     cfg.StageTimeout(),
		batchSize:        cfg.Workflow.BatchSize,
		workers:          cfg.Workflow.Workers,
		maxAttempts:      cfg.Workflow.MaxAttempts,
		suppressDegraded: cfg.Dispatch.SuppressDegraded,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 1
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 15 * time.Second
	}
	return m
}
