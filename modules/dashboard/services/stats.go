package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
)

// StatsSource is the quick-stats endpoint. *ajax.Client implements it.
type StatsSource interface {
	QuickStats(ctx context.Context) (ajax.QuickStats, error)
}

// StatsPoller fetches quick stats on a cron schedule.
type StatsPoller struct {
	source   StatsSource
	schedule string
	log      *logrus.Logger
	onResult func(ajax.QuickStats, error)
}

// NewStatsPoller validates schedule (standard five-field cron syntax or a
// descriptor such as "@every 30s").
func NewStatsPoller(source StatsSource, schedule string, log *logrus.Logger, onResult func(ajax.QuickStats, error)) (*StatsPoller, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	return &StatsPoller{source: source, schedule: schedule, log: log, onResult: onResult}, nil
}

// Run polls until ctx is done, then waits for a running poll to finish.
func (p *StatsPoller) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() { p.poll(ctx) }); err != nil {
		return errors.Wrap(err, "schedule stats poll")
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (p *StatsPoller) poll(ctx context.Context) {
	stats, err := p.source.QuickStats(ctx)
	if err != nil {
		p.log.WithError(err).Error("quick stats poll failed")
	}
	p.onResult(stats, err)
}
