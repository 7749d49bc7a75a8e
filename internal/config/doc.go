// Package config loads, normalizes, and validates leadflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// credentials such as LEADFLOW_LLM_API_KEY and LEADFLOW_SMTP_PASSWORD. The
// Config type carries every knob the orchestrator, the stage executors, and
// the CLI need, including the qualification rules injected into the Validate
// stage and the model settings injected into Generate Content.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
