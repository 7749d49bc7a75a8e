// Package preflight provides readiness checks for the services and
// filesystem paths leadflow depends on.
//
// The daemon runs RunAll before starting the tick loop and refuses to start
// when a required check fails. The CLI "leadflow status" command shows the
// same results alongside ledger counts.
package preflight
