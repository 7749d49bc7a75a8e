package stage

import (
	"context"

	"leadflow/internal/ledger"
)

// Executor is the contract the orchestrator needs from each stage.
// Execute reads the record and returns an outcome; it never writes the ledger.
type Executor interface {
	Stage() ledger.Stage
	Execute(context.Context, *ledger.Record) Outcome
}

// HealthChecker is implemented by executors whose collaborators can be probed.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}
