package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show orchestrator, dependency and ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				writeLines(out, renderSectionHeader("leadflow", colorize))
				configDetail := ctx.configPath
				if !ctx.configSeen {
					configDetail += " (not found, using defaults)"
				}
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
				running, err := orchestratorRunning(cfg.LockPath())
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("Orchestrator", statusWarn, err.Error(), colorize))
				case running:
					fmt.Fprintln(out, renderStatusLine("Orchestrator", statusOK, "running", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Orchestrator", statusInfo, "not running", colorize))
				}
				if health, err := store.CheckHealth(cmd.Context()); err != nil {
					fmt.Fprintln(out, renderStatusLine("Ledger", statusError, err.Error(), colorize))
				} else {
					detail := fmt.Sprintf("%s (schema v%d, %s journal, %d records)",
						health.DBPath, health.SchemaVersion, health.JournalMode, health.TotalRecords)
					fmt.Fprintln(out, renderStatusLine("Ledger", statusOK, detail, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Audit trail", statusInfo, cfg.AuditPath(), colorize))

				if !skipChecks {
					fmt.Fprintln(out)
					writeLines(out, renderSectionHeader("Dependencies", colorize))
					results := preflight.RunAll(cmd.Context(), cfg)
					results = append(results, preflight.CheckDispatchFromConfig(cfg), preflight.CheckNotificationsFromConfig(cfg))
					for _, r := range results {
						fmt.Fprintln(out, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
					}
				}

				fmt.Fprintln(out)
				writeLines(out, renderSectionHeader("Ledger", colorize))
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatsTable(stats))

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				pipelineKind := statusOK
				if health.Dead > 0 || health.Failed > 0 {
					pipelineKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Pipeline", pipelineKind,
					fmt.Sprintf("%d active, %d dispatched, %d failed, %d dead, %d rejected",
						health.Active, health.Dispatched, health.Failed, health.Dead, health.Rejected), colorize))

				ambiguous, err := store.List(cmd.Context(), 0, ledger.StatusDispatchAttempted)
				if err != nil {
					return err
				}
				if len(ambiguous) > 0 {
					fmt.Fprintln(out, renderStatusLine("Ambiguous dispatch", statusWarn,
						fmt.Sprintf("%d record(s) need 'leadflow ledger reconcile': %s", len(ambiguous), strings.Join(ambiguous, ", ")), colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "no-checks", false, "Skip dependency and connectivity checks")
	return cmd
}

func resultKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// orchestratorRunning probes the orchestrator lock without holding it.
func orchestratorRunning(lockPath string) (bool, error) {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
