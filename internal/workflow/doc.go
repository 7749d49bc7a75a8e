// Package workflow drives ledger records through the pipeline stages.
//
// A Manager tick polls the message source, records new messages in the
// ledger, then runs exactly one stage for each eligible record on a bounded
// worker pool. Each outcome is committed with a compare-and-swap against the
// revision the stage read, so a record changed by anyone else in the
// meantime is skipped until the next tick.
//
// Dispatch is the one stage with a two-step commit: the record moves to
// dispatch_attempted before the reply is handed to the transport and to
// dispatched afterwards. A crash in between leaves the record in
// dispatch_attempted, which is never retried automatically; Start reports
// such records and Reconcile resolves them on operator instruction.
package workflow
