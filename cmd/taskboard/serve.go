package main

import (
	"github.com/spf13/cobra"

	"taskboard/api"
	"taskboard/board"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client := a.client(true)

			b := board.New(client, a.logger)
			defer b.Close()
			// The dashboard still starts when the first load fails; the
			// error is shown on the board until a reload succeeds.
			if err := b.LoadWithRetry(ctx, a.cfg.LoadAttempts, a.cfg.LoadBackoff); err != nil {
				a.logger.WithError(err).Warn("initial board load failed")
			}
			in := board.NewInbox(client, a.logger)
			defer in.Close()
			if err := in.Load(ctx); err != nil {
				a.logger.WithError(err).Warn("initial notification load failed")
			}

			e := api.NewServer(b, in, a.logger, api.NewMetrics(nil))
			return runEcho(ctx, e, a.cfg.Dashboard.Listen, a.logger)
		},
	}
	cmd.Flags().String("listen", "", "dashboard listen address")
	return cmd
}
