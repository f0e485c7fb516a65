package services

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrNotAForm = serrors.NewError("FORM_NOT_FOUND", "trigger does not belong to an entity form modal", "")

const invalidFormMessage = "Please correct the errors in the form."

// FormFlow submits the create and edit forms loaded into {kind}FormModal.
type FormFlow struct {
	rt *Runtime
}

func NewFormFlow(rt *Runtime) *FormFlow {
	return &FormFlow{rt: rt}
}

// kindOfFormModal maps "memberFormModal" back to Member.
func kindOfFormModal(modalID string) (entity.Kind, bool) {
	for _, k := range entity.Kinds() {
		if entity.FormModalID(k) == modalID {
			return k, true
		}
	}
	return 0, false
}

// Submit serialises the trigger's form, applies overrides and posts it.
// The form element carries data-{kind}-id when it edits an existing entity.
func (f *FormFlow) Submit(trigger dom.Trigger, overrides url.Values) error {
	kind, ok := kindOfFormModal(trigger.ModalID)
	if !ok || trigger.FormSelector == "" {
		return errors.Wrapf(ErrNotAForm, "modal %q", trigger.ModalID)
	}
	values, err := f.rt.Page.FormValues(trigger.FormSelector)
	if err != nil {
		return err
	}
	for k, v := range overrides {
		values[k] = append([]string(nil), v...)
	}
	form, err := f.rt.Page.Trigger(trigger.FormSelector)
	if err != nil {
		return err
	}
	ref := entity.Reference{Kind: kind, ID: form.Attr(entity.IDAttr(kind))}

	ticket := f.rt.Container.Ticket()
	selector := trigger.FormSelector
	f.rt.Go("submit", kind.String(), func(ctx context.Context) (func(), error) {
		res, status, err := f.rt.backend.Submit(ctx, ref, values)
		return func() { f.finish(ticket, ref, selector, res, status, err) }, err
	})
	return nil
}

func (f *FormFlow) finish(ticket uint64, ref entity.Reference, selector string, res ajax.MutationResult, status int, err error) {
	log := f.rt.log.WithFields(logrus.Fields{
		"kind": ref.Kind.String(),
		"id":   ref.ID,
		"path": entity.SubmitPath(ref.Kind, ref.ID),
	})
	modalID := entity.FormModalID(ref.Kind)

	switch {
	case err == nil:
		if herr := f.rt.Modals.Hide(modalID); herr != nil && !errors.Is(herr, dom.ErrNotFound) {
			log.WithError(herr).Error("hide form modal")
		}
		msg := res.Message
		if msg == "" {
			msg = ref.Kind.Title() + " saved successfully!"
		}
		f.rt.Notifier.Success(msg)
		f.rt.Reload.Schedule()
		f.rt.Bus.Publish(FormSubmitted{Ref: ref, Success: true, Message: msg})
	case status == http.StatusBadRequest && res.HasFieldErrors():
		fields := res.FieldErrors()
		log.WithField("fields", strings.Join(fieldNames(fields), ",")).Warn("form rejected")
		if f.rt.Container.IsCurrent(ticket) {
			f.markInvalid(selector, fields)
		}
		f.rt.Notifier.Warning(invalidFormMessage)
		f.rt.Bus.Publish(FormSubmitted{Ref: ref, Invalid: true, Message: invalidFormMessage})
	default:
		log.WithError(err).Errorf("Failed to save %s", ref.Kind)
		msg := "Failed to save " + ref.Kind.String() + ". Please try again."
		f.rt.Notifier.Error(msg)
		f.rt.Bus.Publish(FormSubmitted{Ref: ref, Message: msg})
	}
}

func (f *FormFlow) markInvalid(selector string, fields map[string][]string) {
	f.rt.Page.RemoveClass(selector+" .is-invalid", "is-invalid")
	for name := range fields {
		f.rt.Page.AddClass(selector+` [name="`+name+`"]`, "is-invalid")
	}
}

func fieldNames(fields map[string][]string) []string {
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
