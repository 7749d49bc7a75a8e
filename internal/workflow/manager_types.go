package workflow

import (
	"context"
	"time"

	"leadflow/internal/ledger"
	"leadflow/internal/stage"
)

// Ledger is the subset of the ledger store the manager uses.
type Ledger interface {
	Get(ctx context.Context, id string) (*ledger.Record, error)
	Create(ctx context.Context, id string, intake ledger.Payload) (*ledger.Record, error)
	Commit(ctx context.Context, t ledger.Transition) (*ledger.Record, error)
	List(ctx context.Context, limit int, statuses ...ledger.Status) ([]string, error)
	Stats(ctx context.Context) (map[ledger.Status]int, error)
}

// StageSet bundles the concrete executors the manager orchestrates.
type StageSet struct {
	Validate stage.Executor
	Enrich   stage.Executor
	Generate stage.Executor
	Render   stage.Executor
	Dispatch stage.Executor
}

func (s StageSet) byStage() map[ledger.Stage]stage.Executor {
	out := make(map[ledger.Stage]stage.Executor, 5)
	for _, exec := range []stage.Executor{s.Validate, s.Enrich, s.Generate, s.Render, s.Dispatch} {
		if exec != nil {
			out[exec.Stage()] = exec
		}
	}
	return out
}

// TickSummary counts what one tick did.
type TickSummary struct {
	RequestID  string
	StartedAt  time.Time
	Duration   time.Duration
	Observed   int
	Created    int
	Processed  int
	Advanced   int
	Rejected   int
	Retried    int
	Dead       int
	Dispatched int
	Conflicts  int
	Ambiguous  int
	Errors     int
}

// result is how one record's stage ended within a tick.
type result int

const (
	resultSkipped result = iota
	resultAdvanced
	resultRejected
	resultRetried
	resultDead
	resultDispatched
	resultAmbiguous
	resultConflict
	resultError
)

func (s *TickSummary) add(r result) {
	if r != resultSkipped && r != resultConflict {
		s.Processed++
	}
	switch r {
	case resultAdvanced:
		s.Advanced++
	case resultRejected:
		s.Rejected++
	case resultRetried:
		s.Retried++
	case resultDead:
		s.Dead++
	case resultDispatched:
		s.Dispatched++
	case resultConflict:
		s.Conflicts++
	case resultError:
		s.Errors++
	}
}
