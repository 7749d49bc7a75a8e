package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leadflow/internal/daemon"
	"leadflow/internal/logging"
	"leadflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			d, err := daemon.Build(cfg, logger)
			if err != nil {
				logging.ErrorWithContext(logger, "failed to assemble daemon", "daemon_build_failed", logging.Error(err))
				return err
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			logger.Info("waiting for shutdown signal", logging.Duration("poll_interval", cfg.PollInterval()))
			<-signalCtx.Done()
			d.Stop()

			status := d.Status(cmd.Context())
			attrs := []logging.Attr{
				logging.Int("ticks", status.Workflow.Ticks),
				logging.String("ledger", status.LedgerPath),
				logging.String(logging.FieldEventType, "run_summary"),
			}
			if status.Workflow.LastError != "" {
				attrs = append(attrs, logging.String("last_error", status.Workflow.LastError))
			}
			logger.Info("orchestrator shut down", logging.Args(attrs...)...)
			return nil
		},
	}
}

func newTickCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single polling cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			d, err := daemon.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			summary, err := d.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTickSummary(summary))
			return nil
		},
	}
}

func renderTickSummary(s workflow.TickSummary) string {
	rows := [][]string{
		{"Observed", fmt.Sprint(s.Observed)},
		{"Created", fmt.Sprint(s.Created)},
		{"Processed", fmt.Sprint(s.Processed)},
		{"Advanced", fmt.Sprint(s.Advanced)},
		{"Rejected", fmt.Sprint(s.Rejected)},
		{"Retried", fmt.Sprint(s.Retried)},
		{"Dead", fmt.Sprint(s.Dead)},
		{"Dispatched", fmt.Sprint(s.Dispatched)},
		{"Conflicts", fmt.Sprint(s.Conflicts)},
		{"Ambiguous", fmt.Sprint(s.Ambiguous)},
		{"Errors", fmt.Sprint(s.Errors)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	return renderTable([]string{"Tick " + s.RequestID, "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
