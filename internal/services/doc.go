// Package services defines shared utilities consumed by the stage executors
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp ledger item IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let executors tag a
//     failure once so the orchestrator can classify it as retryable or fatal.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
