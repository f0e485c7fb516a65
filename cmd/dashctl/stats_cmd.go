package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/services"
)

func newStatsCmd(a *app) *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the quick member stats, once or on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ajax.NewClient(ajax.OptionsFromConfiguration(a.conf))
			if err != nil {
				return withCode(exitUsage, err)
			}
			out := cmd.OutOrStdout()
			if schedule == "" {
				stats, err := client.QuickStats(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSONLine(out, stats)
			}

			poller, err := services.NewStatsPoller(client, schedule, a.conf.Logger(), func(stats ajax.QuickStats, err error) {
				if err == nil {
					_ = writeJSONLine(out, stats)
				}
			})
			if err != nil {
				return withCode(exitUsage, err)
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			a.startOps(ctx, g, false)
			g.Go(func() error { return poller.Run(ctx) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `Cron schedule, e.g. "*/5 * * * *" or "@every 30s"`)
	return cmd
}
