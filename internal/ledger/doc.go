// Package ledger persists pipeline records in SQLite and exposes the
// compare-and-swap commit the orchestrator relies on.
//
// A record is created once per external item id and then moves forward one
// stage at a time. Every Commit names the status and revision the caller read;
// a stale expectation fails with ErrConflict and nothing is written. Payload
// fields accumulate stage outputs and are append-only: a commit that would
// change an existing field fails with ErrPayloadOverwrite.
//
// The database runs in WAL mode with synchronous=FULL so a commit that returns
// is on disk. Records are never deleted. Schema changes bump schemaVersion in
// schema.go; an existing database with a different version refuses to open.
package ledger
