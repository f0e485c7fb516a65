package main

import (
	"context"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/flockdesk/pkg/metrics"
	"github.com/iota-uz/flockdesk/pkg/middleware"
	"github.com/iota-uz/flockdesk/pkg/server"
)

// startOps serves the Prometheus endpoint on the errgroup when enabled.
func (a *app) startOps(ctx context.Context, g *errgroup.Group, force bool) {
	conf := a.conf
	if !conf.Prometheus.Enabled && !force {
		return
	}
	logger := conf.Logger()
	opts := middleware.DefaultLoggerOptions()
	opts.RequestIDHeader = conf.RequestIDHeader
	srv := server.NewHTTPServer(
		[]server.Controller{metrics.NewPrometheusController(conf.Prometheus.Path)},
		[]mux.MiddlewareFunc{middleware.WithLogger(logger, opts)},
		nil, nil,
	)
	g.Go(func() error {
		logger.WithField("addr", conf.Prometheus.Address).Info("serving metrics at " + conf.Prometheus.Path)
		return srv.Start(ctx, conf.Prometheus.Address)
	})
}
