// Package source reads inbound messages from a spool directory.
//
// Each *.eml file is one RFC 5322 message. The source never moves or
// deletes spool files; de-duplication is the ledger's job, so every poll
// returns every message and the orchestrator's Create call filters the ones
// already recorded.
package source
