package overlay

import (
	"github.com/go-faster/errors"

	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/pkg/eventbus"
)

const shownClass = "show"

// Modals shows and hides modal dialogs present in the page.
type Modals struct {
	page *dom.Page
	bus  eventbus.EventBus
}

func NewModals(page *dom.Page, bus eventbus.EventBus) *Modals {
	return &Modals{page: page, bus: bus}
}

func selector(id string) string {
	return "#" + id
}

func (m *Modals) Show(id string) error {
	if m.page.AddClass(selector(id), shownClass) == 0 {
		return errors.Wrapf(dom.ErrNotFound, "modal %s", id)
	}
	m.bus.Publish(ModalShown{ID: id})
	return nil
}

// Hide is a no-op for a modal that is not shown. A modal that no longer
// exists is reported as not found.
func (m *Modals) Hide(id string) error {
	if !m.page.Exists(selector(id)) {
		return errors.Wrapf(dom.ErrNotFound, "modal %s", id)
	}
	if !m.IsShown(id) {
		return nil
	}
	m.page.RemoveClass(selector(id), shownClass)
	m.bus.Publish(ModalHidden{ID: id})
	return nil
}

func (m *Modals) IsShown(id string) bool {
	return m.page.HasClass(selector(id), shownClass)
}

// Visible lists the ids of every shown modal.
func (m *Modals) Visible() []string {
	var ids []string
	for _, t := range m.page.Triggers(".modal." + shownClass) {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
