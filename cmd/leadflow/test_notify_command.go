package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadflow/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through every configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			notifier := notifications.New(cfg)
			if notifier == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification backend configured (set notifications.ntfy_topic or the telegram settings)")
				return nil
			}
			if err := notifier.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
