package preflight

import (
	"context"
	"strings"

	"leadflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Inbox directory", cfg.Source.InboxDir),
	}

	switch cfg.Dispatch.Mode {
	case config.DispatchModeOutbox:
		results = append(results, CheckDirectoryAccess("Outbox directory", cfg.Dispatch.OutboxDir))
	case config.DispatchModeSMTP:
		results = append(results, CheckSMTP(ctx, cfg.Dispatch))
	}

	results = append(results, CheckLLM(ctx, "Generative text API", cfg.LLM))

	if converter, ok := CheckConverter(cfg); ok {
		results = append(results, converter)
	}
	return results
}

// Failed returns the names of failed checks that are not optional.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.Passed && !r.Optional {
			names = append(names, r.Name)
		}
	}
	return names
}

// Summary joins failed check names for error messages.
func Summary(results []Result) string {
	return strings.Join(Failed(results), ", ")
}
