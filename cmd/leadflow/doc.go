// Package main hosts the leadflow CLI entrypoint and command graph.
//
// The Cobra command tree runs the orchestrator (run, tick), inspects and
// repairs the ledger (ledger list/show/stats/reconcile), reads the audit
// trail, and scaffolds configuration. Configuration resolution and logger
// setup live in commandContext so subcommands only describe output.
//
// Add behavior to the internal packages first, then surface it here.
package main
