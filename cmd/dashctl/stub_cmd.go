package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/flockdesk/internal/stubserver"
)

func newStubCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve an in-memory stand-in for the dashboard server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.conf.Logger()
			stub := stubserver.NewSeeded(logger)
			g, ctx := errgroup.WithContext(cmd.Context())
			a.startOps(ctx, g, false)
			g.Go(func() error {
				logger.WithField("addr", addr).Info("stub server listening")
				return stub.Serve(ctx, addr)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "Listen address")
	return cmd
}
