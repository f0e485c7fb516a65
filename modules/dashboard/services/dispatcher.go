package services

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrUnroutable = serrors.NewError("DISPATCH_UNROUTABLE", "no handler is registered for the event target", "")

type EventType int

const (
	EventClick EventType = iota + 1
	EventSubmit
)

func (t EventType) String() string {
	switch t {
	case EventClick:
		return "click"
	case EventSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// Event is a user gesture on a page element.
type Event struct {
	Type   EventType
	Target dom.Trigger
	// CurrentTarget is the element, Target or one of its ancestors, whose
	// routing key matched.
	CurrentTarget dom.Trigger
	// Values override form fields on submit.
	Values url.Values

	prevented bool
}

func ClickEvent(target dom.Trigger) *Event {
	return &Event{Type: EventClick, Target: target}
}

func SubmitEvent(target dom.Trigger, values url.Values) *Event {
	return &Event{Type: EventSubmit, Target: target, Values: values}
}

// PreventDefault marks the event as handled so no navigation follows.
func (e *Event) PreventDefault() {
	e.prevented = true
}

func (e *Event) DefaultPrevented() bool {
	return e.prevented
}

type route struct {
	kind entity.Kind
	verb entity.Verb
}

type handler func(ev *Event, ref entity.Reference) error

// Dispatcher routes events to the flows through a (kind, verb) table built
// once at construction.
type Dispatcher struct {
	rt      *Runtime
	loader  *Loader
	deletes *DeleteFlow
	forms   *FormFlow

	table map[route]handler
	byID  map[string]func(ev *Event) error
}

func NewDispatcher(rt *Runtime, loader *Loader, deletes *DeleteFlow, forms *FormFlow) *Dispatcher {
	d := &Dispatcher{
		rt:      rt,
		loader:  loader,
		deletes: deletes,
		forms:   forms,
		table:   map[route]handler{},
		byID:    map[string]func(ev *Event) error{},
	}

	for _, k := range entity.Kinds() {
		d.table[route{k, entity.View}] = func(_ *Event, ref entity.Reference) error {
			d.loader.ShowDetails(ref)
			return nil
		}
		d.table[route{k, entity.Edit}] = func(_ *Event, ref entity.Reference) error {
			d.loader.LoadForm(ref)
			return nil
		}
		d.table[route{k, entity.Delete}] = func(_ *Event, ref entity.Reference) error {
			return d.deletes.Confirm(ref)
		}
		d.table[route{k, entity.Add}] = func(_ *Event, ref entity.Reference) error {
			d.loader.LoadForm(entity.Reference{Kind: ref.Kind})
			return nil
		}

		kind := k
		for _, id := range entity.AddButtonIDs(kind) {
			d.byID[id] = func(ev *Event) error {
				return d.table[route{kind, entity.Add}](ev, entity.Reference{Kind: kind})
			}
		}
	}
	d.byID[entity.BulkDeleteButtonID] = d.bulkDelete
	d.byID[entity.ConfirmDeleteButtonID] = func(ev *Event) error {
		return d.deletes.Execute(ev.CurrentTarget)
	}
	d.byID[entity.ConfirmBulkDeleteButtonID] = func(ev *Event) error {
		return d.deletes.ExecuteBulk(ev.CurrentTarget)
	}
	return d
}

// Dispatch routes ev. It must run on the loop.
func (d *Dispatcher) Dispatch(ev *Event) error {
	log := d.rt.log.WithFields(logrus.Fields{
		"event":   ev.Type.String(),
		"element": describe(ev.Target),
	})

	if ev.Type == EventSubmit {
		ev.PreventDefault()
		return d.forms.Submit(ev.Target, ev.Values)
	}

	// Clicks bubble: an icon inside a trigger routes like the trigger.
	for _, target := range ev.Target.Path() {
		routed, err := d.route(ev, target, log)
		if routed {
			return err
		}
	}

	if isSubmitControl(ev.Target) {
		ev.PreventDefault()
		return d.forms.Submit(ev.Target, ev.Values)
	}

	log.Debug("unroutable event")
	return ErrUnroutable
}

// route runs the handler keyed by target, if any.
func (d *Dispatcher) route(ev *Event, target dom.Trigger, log *logrus.Entry) (bool, error) {
	if h, ok := d.byID[target.ID]; ok {
		ev.PreventDefault()
		ev.CurrentTarget = target
		return true, h(ev)
	}

	switch target.Attr("data-bs-dismiss") {
	case "modal":
		if target.ModalID == "" {
			break
		}
		ev.PreventDefault()
		if err := d.rt.Modals.Hide(target.ModalID); err != nil && !errors.Is(err, dom.ErrNotFound) {
			return true, err
		}
		return true, nil
	case "toast":
		if target.ToastID == "" {
			break
		}
		ev.PreventDefault()
		d.rt.Toasts.Hide(target.ToastID)
		return true, nil
	}

	for _, class := range target.Classes {
		verb, kind, ok := entity.ParseTriggerClass(class)
		if !ok {
			continue
		}
		ev.PreventDefault()
		ev.CurrentTarget = target
		ref, err := entity.ReferenceFromAttrs(kind, target.Attrs)
		if err != nil {
			log.WithError(err).Error("trigger has no entity id")
			return true, err
		}
		return true, d.table[route{kind, verb}](ev, ref)
	}
	return false, nil
}

func (d *Dispatcher) bulkDelete(ev *Event) error {
	kind := entity.Member
	if raw := ev.CurrentTarget.Attr("data-kind"); raw != "" {
		k, err := entity.ParseKind(raw)
		if err != nil {
			return err
		}
		kind = k
	}
	ids, err := d.rt.Page.CheckedValues(entity.CheckboxClass(kind))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		d.rt.log.WithField("kind", kind.String()).Debug("bulk delete with nothing selected")
		return nil
	}
	return d.deletes.ConfirmBulk(kind, ids)
}

func isSubmitControl(t dom.Trigger) bool {
	if t.FormSelector == "" {
		return false
	}
	typ := strings.ToLower(t.Attr("type"))
	switch t.Tag {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit"
	default:
		return false
	}
}

func describe(t dom.Trigger) string {
	var b strings.Builder
	b.WriteString(t.Tag)
	if t.ID != "" {
		b.WriteString("#")
		b.WriteString(t.ID)
	}
	for _, c := range t.Classes {
		b.WriteString(".")
		b.WriteString(c)
	}
	return b.String()
}
