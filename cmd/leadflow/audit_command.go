package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadflow/internal/audit"
	"leadflow/internal/ledger"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var itemID string
	var stageName string
	var kinds []string
	var limit int
	var failures bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := audit.Filter{ItemID: strings.TrimSpace(itemID)}
			if strings.TrimSpace(stageName) != "" {
				st, ok := ledger.ParseStage(stageName)
				if !ok {
					return fmt.Errorf("unknown stage %q", stageName)
				}
				filter.Stage = string(st)
			}
			for _, value := range kinds {
				for _, part := range strings.Split(value, ",") {
					if part = strings.TrimSpace(part); part != "" {
						filter.Kinds = append(filter.Kinds, audit.Kind(part))
					}
				}
			}
			if failures {
				filter.Kinds = append(filter.Kinds, audit.FailureKinds()...)
			}

			events, err := audit.Read(cfg.AuditPath(), filter, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No audit events")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				reason := e.Reason
				if e.Recipient != "" {
					reason = "to " + e.Recipient
				}
				attempt := ""
				if e.Attempt > 0 {
					attempt = fmt.Sprint(e.Attempt)
				}
				rows = append(rows, []string{formatTime(e.Time), string(e.Kind), e.ItemID, e.Stage, e.Status, attempt, truncateValue(reason, 60)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Kind", "Item", "Stage", "Status", "Attempt", "Reason"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&itemID, "item", "i", "", "Only events for this item id")
	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "Only events for this stage (validate, enrich, generate, render, dispatch)")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only these event kinds (repeatable or comma separated)")
	cmd.Flags().BoolVar(&failures, "failures", false, "Only failure events (stage_failed, dead, ambiguous_dispatch, tick_error)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show the last N events (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
