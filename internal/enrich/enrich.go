// Package enrich fetches the lead's website and stores its readable text.
package enrich

import (
	"context"
	"log/slog"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/stage"
)

// Executor is the enrich stage.
type Executor struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewExecutor constructs the enrich stage around fetcher.
func NewExecutor(fetcher Fetcher, logger *slog.Logger) *Executor {
	return &Executor{fetcher: fetcher, logger: logging.NewComponentLogger(logger, "enrich")}
}

// Stage implements stage.Executor.
func (e *Executor) Stage() ledger.Stage { return ledger.StageEnrich }

// Execute implements stage.Executor. Any fetch error is retryable; an empty
// page still advances with empty source text.
func (e *Executor) Execute(ctx context.Context, rec *ledger.Record) stage.Outcome {
	website := rec.Field("website")
	target := NormalizeReference(website)
	if target == "" {
		return stage.Fatal("record has no website reference", nil)
	}
	text, err := e.fetcher.Fetch(ctx, website)
	if err != nil {
		out := stage.FromError(err)
		if out.Kind == stage.KindFatal {
			return out
		}
		return stage.Retryable(out.Reason, err)
	}
	if text == "" {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "website returned no readable text", "enrich_empty",
			logging.String("source_url", target),
			logging.String(logging.FieldImpact, "summary falls back to placeholder text"),
		)
	}
	return stage.Advance(ledger.Payload{
		"source_text": text,
		"source_url":  target,
	})
}
