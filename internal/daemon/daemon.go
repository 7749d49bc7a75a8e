package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/notifications"
	"leadflow/internal/preflight"
	"leadflow/internal/workflow"
)

// ErrLocked means another orchestrator holds the ledger lock.
var ErrLocked = errors.New("another leadflow orchestrator is already running")

// Daemon owns the orchestrator lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	workflow *workflow.Manager
	notifier *notifications.Notifier

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	preflight func(context.Context, *config.Config) []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	LedgerPath   string
	LockFilePath string
	AuditPath    string
}

// New constructs a daemon from already-built dependencies. notifier may be nil.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, wf *workflow.Manager, notifier *notifications.Notifier) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, ledger, logger, and workflow manager")
	}
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		workflow:  wf,
		notifier:  notifier,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		preflight: preflight.RunAll,
	}, nil
}

// SkipPreflight disables the readiness checks run by Start.
func (d *Daemon) SkipPreflight() {
	d.preflight = nil
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrLocked, d.lockPath)
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release orchestrator lock", logging.Error(err), logging.String("lock", d.lockPath))
	}
}

// Start acquires the lock, runs preflight checks and launches the tick loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return err
	}

	if d.preflight != nil {
		results := d.preflight(ctx, d.cfg)
		for _, r := range results {
			if !r.Passed {
				d.logger.Warn("preflight check failed",
					logging.String("check", r.Name),
					logging.String("detail", r.Detail),
					logging.Bool("optional", r.Optional),
					logging.String(logging.FieldEventType, "preflight_failed"),
				)
			}
		}
		if failed := preflight.Summary(results); failed != "" {
			d.release()
			return fmt.Errorf("preflight failed: %s", failed)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.release()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if d.notifier != nil {
		interval := time.Duration(d.cfg.Notifications.TelegramFlushSeconds) * time.Second
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.notifier.Run(runCtx, interval, d.logger)
		}()
	}

	d.running.Store(true)
	d.logger.Info("leadflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("ledger", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	d.release()
	d.running.Store(false)
	d.logger.Info("leadflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// RunOnce executes a single tick under the orchestrator lock.
func (d *Daemon) RunOnce(ctx context.Context) (workflow.TickSummary, error) {
	if d.running.Load() {
		return workflow.TickSummary{}, errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return workflow.TickSummary{}, err
	}
	defer d.release()

	summary, err := d.workflow.Tick(ctx)
	if d.notifier != nil {
		if ferr := d.notifier.Flush(ctx); ferr != nil {
			d.logger.Warn("notification flush failed", logging.Error(ferr))
		}
	}
	return summary, err
}

// Close stops the daemon and closes the ledger.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		AuditPath:    d.cfg.AuditPath(),
	}
}
