package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leadflow/internal/audit"
	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/workflow"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and repair ledger records",
	}
	cmd.AddCommand(newLedgerListCommand(ctx))
	cmd.AddCommand(newLedgerShowCommand(ctx))
	cmd.AddCommand(newLedgerStatsCommand(ctx))
	cmd.AddCommand(newLedgerReconcileCommand(ctx))
	return cmd
}

func parseStatuses(values []string) ([]ledger.Status, error) {
	statuses := make([]ledger.Status, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := ledger.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func recordStatus(rec *ledger.Record) string {
	if rec.FailedStage == "" {
		return string(rec.Status)
	}
	return fmt.Sprintf("%s (%s)", rec.Status, rec.FailedStage)
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads with sender, website and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				records, err := store.ListRecords(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), recordViews(records))
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.ID,
						rec.Field("sender_name"),
						rec.Field("sender_email"),
						rec.Field("website"),
						recordStatus(rec),
						formatTime(rec.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Email", "Website", "Status", "Updated"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

type recordView struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	FailedStage string            `json:"failed_stage,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Attempts    map[string]int    `json:"attempts,omitempty"`
	Revision    int64             `json:"revision"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Payload     map[string]string `json:"payload"`
}

func newRecordView(rec *ledger.Record) recordView {
	view := recordView{
		ID:          rec.ID,
		Status:      string(rec.Status),
		FailedStage: string(rec.FailedStage),
		Reason:      rec.Reason,
		Revision:    rec.Revision,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Payload:     rec.Payload,
	}
	if len(rec.Attempts) > 0 {
		view.Attempts = make(map[string]int, len(rec.Attempts))
		for stage, n := range rec.Attempts {
			view.Attempts[string(stage)] = n
		}
	}
	return view
}

func recordViews(records []*ledger.Record) []recordView {
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}
	return views
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record with its full payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("record %q not found", args[0])
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), newRecordView(rec))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", rec.ID)
				fmt.Fprintf(out, "Status:    %s\n", recordStatus(rec))
				if rec.Reason != "" {
					fmt.Fprintf(out, "Reason:    %s\n", rec.Reason)
				}
				fmt.Fprintf(out, "Revision:  %d\n", rec.Revision)
				fmt.Fprintf(out, "Created:   %s\n", formatTime(rec.CreatedAt))
				fmt.Fprintf(out, "Updated:   %s\n", formatTime(rec.UpdatedAt))
				if len(rec.Attempts) > 0 {
					parts := make([]string, 0, len(rec.Attempts))
					for _, stage := range ledger.AllStages() {
						if n := rec.Attempts[stage]; n > 0 {
							parts = append(parts, fmt.Sprintf("%s=%d", stage, n))
						}
					}
					fmt.Fprintf(out, "Attempts:  %s\n", strings.Join(parts, ", "))
				}
				rows := make([][]string, 0, len(rec.Payload))
				for _, key := range rec.Payload.Keys() {
					rows = append(rows, []string{key, truncateValue(rec.Payload[key], 80)})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func truncateValue(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatsTable(stats))
				return nil
			})
		},
	}
}

func renderStatsTable(stats map[ledger.Status]int) string {
	rows := make([][]string, 0, len(stats))
	total := 0
	for _, status := range ledger.AllStatuses() {
		count := stats[status]
		total += count
		rows = append(rows, []string{string(status), fmt.Sprint(count)})
	}
	rows = append(rows, []string{"total", fmt.Sprint(total)})
	return renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func newLedgerReconcileCommand(ctx *commandContext) *cobra.Command {
	var sent, notSent bool
	cmd := &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Resolve an ambiguous dispatch after checking the mail system",
		Long: "Records left in dispatch_attempted may or may not have been sent. " +
			"Use --sent when the reply reached the recipient, or --not-sent to retry dispatch on the next tick.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sent == notSent {
				return errors.New("exactly one of --sent or --not-sent is required")
			}
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				rec, err := workflow.Reconcile(cmd.Context(), store, audit.NewFileSink(cfg.AuditPath(), nil), args[0], sent)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %s is now %s\n", rec.ID, recordStatus(rec))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&sent, "sent", false, "The reply was delivered")
	cmd.Flags().BoolVar(&notSent, "not-sent", false, "The reply was not delivered; dispatch again")
	return cmd
}
