package scenario

import (
	"context"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Driver is the page a scenario acts on. *dashboard.Module implements it.
type Driver interface {
	Open(ctx context.Context, path string) error
	Click(ctx context.Context, selector string) error
	Check(ctx context.Context, selector string, checked bool) (int, error)
	Fill(ctx context.Context, selector, value string) error
	Submit(ctx context.Context, selector string, overrides url.Values) error
	Settle(ctx context.Context) error
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index int
	Step  Step
	Err   error
	Took  time.Duration
}

type Report struct {
	Name  string
	Steps []StepResult
}

// Failed counts the steps that returned an error, allowed or not.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Runner plays scenarios step by step, waiting for the page to settle after
// each one. Steps are paced by a rate such as "20-S" or "100-M".
type Runner struct {
	driver  Driver
	limiter *limiter.Limiter
	clock   clockwork.Clock
	log     *logrus.Logger
}

func NewRunner(driver Driver, rate string, clock clockwork.Clock, log *logrus.Logger) (*Runner, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid replay rate %q", rate)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		driver:  driver,
		limiter: limiter.New(memory.NewStore(), r),
		clock:   clock,
		log:     log,
	}, nil
}

// pace blocks until the limiter lets the next step through.
func (r *Runner) pace(ctx context.Context, key string) error {
	for {
		lc, err := r.limiter.Get(ctx, key)
		if err != nil {
			return errors.Wrap(err, "replay limiter")
		}
		if !lc.Reached {
			return nil
		}
		wait := time.Unix(lc.Reset, 0).Sub(r.clock.Now())
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		select {
		case <-r.clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run plays sc and stops at the first failing step unless it allows errors.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (Report, error) {
	report := Report{Name: sc.Name}
	log := r.log.WithField("scenario", sc.Name)

	for i, st := range sc.Steps {
		if err := r.pace(ctx, sc.Name); err != nil {
			return report, err
		}
		start := r.clock.Now()
		err := r.step(ctx, st)
		if err == nil {
			err = r.driver.Settle(ctx)
		}
		res := StepResult{Index: i + 1, Step: st, Err: err, Took: r.clock.Since(start)}
		report.Steps = append(report.Steps, res)

		entry := log.WithFields(logrus.Fields{"step": res.Index, "action": string(st.Action), "target": st.Target})
		if err != nil {
			if st.AllowError {
				entry.WithError(err).Info("step failed, continuing")
				continue
			}
			entry.WithError(err).Error("step failed")
			return report, errors.Wrapf(err, "step %d (%s)", res.Index, st)
		}
		entry.Debug("step done")
	}
	return report, nil
}

func (r *Runner) step(ctx context.Context, st Step) error {
	switch st.Action {
	case ActionOpen:
		return r.driver.Open(ctx, st.Target)
	case ActionClick:
		return r.driver.Click(ctx, st.Target)
	case ActionCheck, ActionUncheck:
		_, err := r.driver.Check(ctx, st.Target, st.Action == ActionCheck)
		return err
	case ActionFill:
		return r.driver.Fill(ctx, st.Target, st.Value)
	case ActionSubmit:
		var overrides url.Values
		if len(st.Values) > 0 {
			overrides = url.Values(st.Values)
		}
		return r.driver.Submit(ctx, st.Target, overrides)
	case ActionWait:
		if st.Duration > 0 {
			select {
			case <-r.clock.After(st.Duration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalid, "unknown action %q", st.Action)
	}
}
