package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dynwatch/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test <subscriber>",
		Short: "Send a test notification to a subscriber's ntfy topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if strings.TrimSpace(cfg.Notifications.NtfyServer) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent: notifications.ntfy_server is not configured")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", args[0])
			return nil
		},
	})
	return notifyCmd
}
