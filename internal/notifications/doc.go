// Package notifications delivers pipeline activity to operators.
//
// Backends are ntfy (one HTTP POST per event) and Telegram (events are
// buffered and flushed on an interval, split at the Bot API message
// limit). NewService returns a no-op notifier when nothing is configured.
// Workflow code depends only on the Service interface.
package notifications
