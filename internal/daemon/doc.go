// Package daemon coordinates the long-running leadflow process.
//
// It wires configuration, the ledger, the message spool, the stage executors,
// audit sinks and notifications into a single lifecycle, with flock-based
// locking so only one orchestrator ever commits to a ledger. Build assembles
// the production graph; New accepts pre-built parts for tests.
//
// Keep orchestration logic in the workflow package: the daemon focuses on
// startup, shutdown and the single-instance guarantee.
package daemon
