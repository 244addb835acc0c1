package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taskboard/board"
)

func notificationsCmd(a *app) *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "List notifications, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := a.client(true)
			if countOnly {
				n, err := client.UnreadCount(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, n)
				return nil
			}
			in := board.NewInbox(client, a.logger)
			defer in.Close()
			if err := in.Load(cmd.Context()); err != nil {
				return err
			}
			return renderNotifications(a.out, in.Notifications(), in.UnreadCount(), a.now())
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the unread count")
	return cmd
}

func readCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read ID",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			in := board.NewInbox(a.client(true), a.logger)
			defer in.Close()
			if err := in.Load(cmd.Context()); err != nil {
				return err
			}
			if err := in.MarkRead(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Marked #%d as read (%d unread)\n", id, in.UnreadCount())
			return nil
		},
	}
}
