package dashboard

import (
	"context"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/modules/dashboard/services"
	"github.com/iota-uz/flockdesk/pkg/configuration"
	"github.com/iota-uz/flockdesk/pkg/eventbus"
)

type ModuleOptions struct {
	Logger  *logrus.Logger
	Backend services.Backend
	Clock   clockwork.Clock
	Bus     eventbus.EventBus
	// Fallback is one of configuration.FallbackLegacy, FallbackPlaceholder
	// or FallbackToast. Empty means legacy.
	Fallback   string
	ToastDelay time.Duration
	// ReloadDelay is one second when left zero.
	ReloadDelay       time.Duration
	ReloadImmediately bool
}

// OptionsFromConfiguration builds module options talking to the configured
// server through an *ajax.Client.
func OptionsFromConfiguration(conf *configuration.Configuration) (*ModuleOptions, *ajax.Client, error) {
	client, err := ajax.NewClient(ajax.OptionsFromConfiguration(conf))
	if err != nil {
		return nil, nil, err
	}
	return &ModuleOptions{
		Logger:            conf.Logger(),
		Backend:           client,
		Fallback:          conf.UI.DetailFallback,
		ToastDelay:        conf.UI.ToastDelay,
		ReloadDelay:       conf.UI.ReloadDelay,
		ReloadImmediately: conf.UI.ReloadDelay == 0,
	}, client, nil
}

// Module is a headless dashboard page: it loads listings from the server
// and reacts to clicks and submits the way the page's scripts do.
type Module struct {
	rt         *services.Runtime
	loader     *services.Loader
	deletes    *services.DeleteFlow
	forms      *services.FormFlow
	dispatcher *services.Dispatcher
}

func NewModule(opts *ModuleOptions) (*Module, error) {
	if opts == nil || opts.Backend == nil {
		return nil, errors.New("dashboard: backend is required")
	}
	policy, err := services.NewFallbackPolicy(opts.Fallback)
	if err != nil {
		return nil, err
	}
	rt := services.NewRuntime(services.RuntimeOptions{
		Logger:            opts.Logger,
		Backend:           opts.Backend,
		Bus:               opts.Bus,
		Clock:             opts.Clock,
		ToastDelay:        opts.ToastDelay,
		ReloadDelay:       opts.ReloadDelay,
		ReloadImmediately: opts.ReloadImmediately,
	})
	m := &Module{
		rt:      rt,
		loader:  services.NewLoader(rt, policy),
		deletes: services.NewDeleteFlow(rt),
		forms:   services.NewFormFlow(rt),
	}
	m.dispatcher = services.NewDispatcher(rt, m.loader, m.deletes, m.forms)
	return m, nil
}

func (m *Module) Name() string {
	return "dashboard"
}

func (m *Module) Start(ctx context.Context) {
	m.rt.Start(ctx)
}

func (m *Module) Runtime() *services.Runtime {
	return m.rt
}

func (m *Module) Page() *dom.Page {
	return m.rt.Page
}

func (m *Module) Deletes() *services.DeleteFlow {
	return m.deletes
}

// Open fetches path and makes it the current page.
func (m *Module) Open(ctx context.Context, path string) error {
	html, err := m.rt.Backend().GetPage(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	return m.rt.Loop.Call(ctx, func() error {
		if err := m.rt.Page.Load(html); err != nil {
			return err
		}
		m.rt.Container.Ticket()
		m.rt.SetLocation(path)
		return nil
	})
}

// Dispatch routes ev on the loop.
func (m *Module) Dispatch(ctx context.Context, ev *services.Event) error {
	return m.rt.Loop.Call(ctx, func() error {
		return m.dispatcher.Dispatch(ev)
	})
}

// Click clicks the first element matching selector.
func (m *Module) Click(ctx context.Context, selector string) error {
	return m.rt.Loop.Call(ctx, func() error {
		target, err := m.rt.Page.Trigger(selector)
		if err != nil {
			return err
		}
		return m.dispatcher.Dispatch(services.ClickEvent(target))
	})
}

// Submit submits the form matching selector, or the form owning the
// control matching it. overrides replace serialised field values.
func (m *Module) Submit(ctx context.Context, selector string, overrides url.Values) error {
	return m.rt.Loop.Call(ctx, func() error {
		target, err := m.rt.Page.Trigger(selector)
		if err != nil {
			return err
		}
		if target.Tag == "form" && target.FormSelector == "" {
			target.FormSelector = selector
		}
		return m.dispatcher.Dispatch(services.SubmitEvent(target, overrides))
	})
}

// Check ticks or clears every checkbox matching selector and returns how
// many matched.
func (m *Module) Check(ctx context.Context, selector string, checked bool) (int, error) {
	var n int
	err := m.rt.Loop.Call(ctx, func() error {
		n = m.rt.Page.SetChecked(selector, checked)
		if n == 0 {
			return errors.Wrapf(dom.ErrNotFound, "checkbox %s", selector)
		}
		return nil
	})
	return n, err
}

// Fill sets the value of the form field matching selector.
func (m *Module) Fill(ctx context.Context, selector, value string) error {
	return m.rt.Loop.Call(ctx, func() error {
		return m.rt.Page.SetValue(selector, value)
	})
}

// Settle waits until every started request has completed and been applied.
func (m *Module) Settle(ctx context.Context) error {
	return m.rt.Settle(ctx)
}

func (m *Module) Close() {
	m.rt.Close()
}
