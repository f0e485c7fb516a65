package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/flockdesk/modules/dashboard/scenario"
)

func newReplayCmd(a *app) *cobra.Command {
	var watch, serveMetrics bool
	var rate string
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scripted session against the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if rate == "" {
				rate = a.conf.Replay.Rate
			}
			logger := a.conf.Logger()
			out := cmd.OutOrStdout()

			runOnce := func(ctx context.Context, sc *scenario.Scenario) error {
				s, err := a.newSession(ctx)
				if err != nil {
					return err
				}
				defer s.close()
				runner, err := scenario.NewRunner(s.m, rate, nil, logger)
				if err != nil {
					return withCode(exitUsage, err)
				}
				report, runErr := runner.Run(ctx, sc)
				for _, st := range report.Steps {
					line := map[string]any{"scenario": report.Name, "step": st.Index, "action": st.Step.String(), "took": st.Took.String()}
					if st.Err != nil {
						line["error"] = st.Err.Error()
					}
					if err := writeJSONLine(out, line); err != nil {
						return err
					}
				}
				return runErr
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			a.startOps(ctx, g, serveMetrics)
			g.Go(func() error {
				if watch {
					return scenario.Watch(ctx, path, logger, runOnce)
				}
				sc, err := scenario.LoadFile(path)
				if err != nil {
					return err
				}
				err = runOnce(ctx, sc)
				if serveMetrics && err == nil {
					// Keep the metrics endpoint up until interrupted.
					<-ctx.Done()
				}
				return err
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Replay again whenever the file changes")
	cmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Serve Prometheus metrics while replaying")
	cmd.Flags().StringVar(&rate, "rate", "", "Step rate, e.g. 20-S (default REPLAY_RATE)")
	return cmd
}
