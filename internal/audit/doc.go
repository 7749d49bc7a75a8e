// Package audit records pipeline events to an append-only trail.
//
// Events are written as JSON lines to <log_dir>/audit.jsonl and optionally
// forwarded to the notifications service. Appends are best-effort: a sink
// failure is logged and never stops the tick that produced the event.
package audit
