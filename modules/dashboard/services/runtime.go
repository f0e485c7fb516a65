package services

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/overlay"
	"github.com/iota-uz/flockdesk/pkg/eventbus"
)

// Backend is the server the dashboard talks to. *ajax.Client implements it.
type Backend interface {
	Detail(ctx context.Context, ref entity.Reference) (string, error)
	Form(ctx context.Context, ref entity.Reference) (string, error)
	Delete(ctx context.Context, ref entity.Reference) (ajax.MutationResult, error)
	BulkDelete(ctx context.Context, kind entity.Kind, ids []string) (ajax.BulkResult, error)
	Submit(ctx context.Context, ref entity.Reference, values url.Values) (ajax.MutationResult, int, error)
	GetPage(ctx context.Context, path string) (string, error)
}

type RuntimeOptions struct {
	Logger     *logrus.Logger
	Backend    Backend
	Page       *dom.Page
	Bus        eventbus.EventBus
	Clock      clockwork.Clock
	ToastDelay time.Duration
	// ReloadDelay defaults to one second when not positive.
	ReloadDelay time.Duration
	// ReloadImmediately skips the delay altogether.
	ReloadImmediately bool
}

// Runtime holds what every flow shares: the loop, the page and its
// overlays, the backend and the in-flight call tracking.
type Runtime struct {
	log     *logrus.Logger
	backend Backend
	clock   clockwork.Clock

	Loop      *Loop
	Page      *dom.Page
	Bus       eventbus.EventBus
	Modals    *overlay.Modals
	Toasts    *overlay.Toasts
	Container *Container
	Notifier  *Notifier
	Reload    *ReloadScheduler

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	location string
	calls    inflight
}

func NewRuntime(opts RuntimeOptions) *Runtime {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	page := opts.Page
	if page == nil {
		page = dom.NewPage()
	}
	bus := opts.Bus
	if bus == nil {
		bus = eventbus.NewEventPublisher(log)
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	toastDelay := opts.ToastDelay
	if toastDelay <= 0 {
		toastDelay = 5 * time.Second
	}
	reloadDelay := opts.ReloadDelay
	switch {
	case opts.ReloadImmediately:
		reloadDelay = 0
	case reloadDelay <= 0:
		reloadDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		log:     log,
		backend: opts.Backend,
		clock:   clock,
		Loop:    NewLoop(log),
		Page:    page,
		Bus:     bus,
		Modals:  overlay.NewModals(page, bus),
		ctx:     ctx,
		cancel:  cancel,
	}
	rt.Toasts = overlay.NewToasts(page, bus, clock, toastDelay, func(f func()) { rt.Loop.Post(f) })
	rt.Container = &Container{rt: rt}
	rt.Notifier = NewNotifier(rt)
	rt.Reload = NewReloadScheduler(clock, reloadDelay, func() { rt.Loop.Post(rt.reload) })
	return rt
}

// Start runs the event loop. Network calls started afterwards are bound to
// ctx as well as to the runtime's own lifetime.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	parent := r.ctx
	r.ctx, r.cancel = mergeCancel(ctx, parent, r.cancel)
	r.mu.Unlock()
	r.Loop.Start(r.ctx)
}

func mergeCancel(ctx, parent context.Context, prev context.CancelFunc) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
		prev()
	}
}

func (r *Runtime) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *Runtime) Logger() *logrus.Logger {
	return r.log
}

func (r *Runtime) Backend() Backend {
	return r.backend
}

// Location is the path of the page currently loaded, the target of reloads.
func (r *Runtime) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

func (r *Runtime) SetLocation(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = path
}

// Go runs call on its own goroutine and posts the completion it returns back
// to the loop. Completions of calls cut short by Close are dropped.
func (r *Runtime) Go(operation, kind string, call func(ctx context.Context) (func(), error)) {
	ctx := r.context()
	r.calls.add()
	go func() {
		defer r.calls.done()
		start := time.Now()
		completion, err := call(ctx)
		observeRequest(operation, kind, ajax.Classify(err), time.Since(start))
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		if completion != nil {
			r.Loop.Post(completion)
		}
	}()
}

// Settle waits until no call is in flight and the loop has drained.
func (r *Runtime) Settle(ctx context.Context) error {
	for {
		if err := r.calls.wait(ctx); err != nil {
			return err
		}
		if err := r.Loop.Sync(ctx); err != nil {
			return err
		}
		if r.calls.count() == 0 && r.Loop.Pending() == 0 {
			return nil
		}
	}
}

// reload runs on the loop when the reload timer fires.
func (r *Runtime) reload() {
	path := r.Location()
	metricsSingleton().reloads.Inc()
	if path == "" {
		r.log.Info("reload requested with no page loaded")
		r.Bus.Publish(Reloaded{})
		return
	}
	r.Go("reload", "", func(ctx context.Context) (func(), error) {
		html, err := r.backend.GetPage(ctx, path)
		if err != nil {
			return func() {
				r.log.WithError(err).WithField("path", path).Error("reload failed")
			}, err
		}
		return func() {
			if err := r.Page.Load(html); err != nil {
				r.log.WithError(err).WithField("path", path).Error("reload: bad page")
				return
			}
			r.Container.Ticket()
			r.Toasts.Close()
			r.Bus.Publish(Reloaded{Path: path})
		}, nil
	})
}

// Close cancels in-flight calls, the pending reload and toast timers, then
// stops the loop. It must not be called from a loop task.
func (r *Runtime) Close() {
	r.Reload.Close()
	r.Toasts.Close()
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
	r.Loop.Close()
}
