// Package stage defines the contract between the orchestrator and the
// per-stage executors.
//
// Executors are pure with respect to the ledger: they receive a snapshot of
// the record and return an Outcome. The orchestrator owns every commit.
package stage
