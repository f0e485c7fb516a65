package services

import (
	"sync/atomic"

	"github.com/go-faster/errors"

	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/overlay"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrStale = serrors.NewError("CONTAINER_STALE", "a newer action owns the modal container", "")

// Container owns the modal container. Every action takes a ticket when it is
// dispatched; only the holder of the newest ticket may render.
type Container struct {
	rt         *Runtime
	generation atomic.Uint64
}

// Ticket starts a new generation and returns it.
func (c *Container) Ticket() uint64 {
	return c.generation.Add(1)
}

func (c *Container) Current() uint64 {
	return c.generation.Load()
}

func (c *Container) IsCurrent(ticket uint64) bool {
	return c.generation.Load() == ticket
}

// Render replaces the container content with html and then shows modalID.
func (c *Container) Render(ticket uint64, html, modalID string) error {
	if !c.IsCurrent(ticket) {
		metricsSingleton().stale.Inc()
		return errors.Wrapf(ErrStale, "ticket %d, current %d", ticket, c.Current())
	}
	if err := c.rt.Page.ReplaceContainer(html); err != nil {
		return err
	}
	c.rt.Bus.Publish(overlay.ContainerReplaced{Generation: ticket})
	return c.rt.Modals.Show(modalID)
}
