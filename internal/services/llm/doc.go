// Package llm provides an OpenAI-compatible chat completion client for the
// content generation stage.
//
// The default endpoint is Groq; any provider speaking the chat completions
// schema (OpenRouter, a local gateway) works by changing base_url.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send one user prompt, receive plain text.
// Client.HealthCheck: short round trip used by preflight and `leadflow status`.
//
// # Errors
//
// Failures are tagged with services sentinels so callers can classify them:
// 401/403 map to services.ErrAuth, 408/429/5xx and network errors to
// services.ErrTransient, client timeouts to services.ErrTimeout, and other
// 4xx responses to services.ErrConfiguration.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts, and empty
// content with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After is honoured up to the max delay. Context
// cancellation aborts retries immediately.
package llm
