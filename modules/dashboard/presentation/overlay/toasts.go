package overlay

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"

	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/pkg/eventbus"
)

// Toasts activates toast nodes and hides them once their delay has passed.
// Hiding is posted back through post so it runs on the caller's event loop.
type Toasts struct {
	page  *dom.Page
	bus   eventbus.EventBus
	clock clockwork.Clock
	delay time.Duration
	post  func(func())

	mu     sync.Mutex
	timers map[string]clockwork.Timer
}

func NewToasts(page *dom.Page, bus eventbus.EventBus, clock clockwork.Clock, delay time.Duration, post func(func())) *Toasts {
	return &Toasts{
		page:   page,
		bus:    bus,
		clock:  clock,
		delay:  delay,
		post:   post,
		timers: map[string]clockwork.Timer{},
	}
}

func (t *Toasts) Show(id string) error {
	if t.page.AddClass(selector(id), shownClass) == 0 {
		return errors.Wrapf(dom.ErrNotFound, "toast %s", id)
	}
	timer := t.clock.AfterFunc(t.delay, func() {
		t.post(func() { t.Hide(id) })
	})

	t.mu.Lock()
	if old, ok := t.timers[id]; ok {
		old.Stop()
	}
	t.timers[id] = timer
	t.mu.Unlock()

	t.bus.Publish(ToastShown{ID: id})
	return nil
}

// Hide hides the toast and fires ToastHidden. Toasts already removed from
// the page are ignored.
func (t *Toasts) Hide(id string) {
	t.Forget(id)
	if !t.page.Exists(selector(id)) {
		return
	}
	t.page.RemoveClass(selector(id), shownClass)
	t.bus.Publish(ToastHidden{ID: id})
}

// Forget stops the auto-hide timer of id.
func (t *Toasts) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Pending returns how many toasts still wait for their auto-hide.
func (t *Toasts) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *Toasts) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
