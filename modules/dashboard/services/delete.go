package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/overlay"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/templates"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrNoPendingDeletion = serrors.NewError("DELETE_NOT_PENDING", "no deletion is waiting for confirmation", "")

const deleteFailedMessage = "Failed to delete. Please try again."

type DeleteState int

const (
	DeleteIdle DeleteState = iota
	DeleteConfirmationShown
	DeleteDeleting
)

func (s DeleteState) String() string {
	switch s {
	case DeleteIdle:
		return "idle"
	case DeleteConfirmationShown:
		return "confirmation-shown"
	case DeleteDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

type pendingDeletion struct {
	ref    entity.Reference
	ids    []string
	bulk   bool
	ticket uint64
}

func (p pendingDeletion) modalID() string {
	if p.bulk {
		return entity.BulkDeleteConfirmationModalID
	}
	return entity.DeleteConfirmationModalID
}

// DeleteFlow asks for confirmation and then deletes one entity or a batch.
// A confirmation is one-shot: dismissing it, replacing the container or
// confirming it returns the flow to idle.
type DeleteFlow struct {
	rt *Runtime

	mu      sync.Mutex
	state   DeleteState
	pending pendingDeletion
	seq     uint64
}

func NewDeleteFlow(rt *Runtime) *DeleteFlow {
	f := &DeleteFlow{rt: rt}
	rt.Bus.Subscribe(func(ev overlay.ModalHidden) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state == DeleteConfirmationShown && ev.ID == f.pending.modalID() {
			f.state = DeleteIdle
		}
	})
	rt.Bus.Subscribe(func(ev overlay.ContainerReplaced) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state == DeleteConfirmationShown && ev.Generation != f.pending.ticket {
			f.state = DeleteIdle
		}
	})
	return f
}

func (f *DeleteFlow) State() DeleteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *DeleteFlow) setPending(p pendingDeletion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = p
	f.state = DeleteConfirmationShown
}

func (f *DeleteFlow) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = DeleteIdle
}

// Confirm shows the confirmation dialog for ref.
func (f *DeleteFlow) Confirm(ref entity.Reference) error {
	html, err := templates.Render(context.Background(), templates.DeleteConfirmation(ref))
	if err != nil {
		return errors.Wrap(err, "render delete confirmation")
	}
	ticket := f.rt.Container.Ticket()
	f.setPending(pendingDeletion{ref: ref, ids: []string{ref.ID}, ticket: ticket})
	if err := f.rt.Container.Render(ticket, html, entity.DeleteConfirmationModalID); err != nil {
		f.reset()
		return err
	}
	return nil
}

// ConfirmBulk shows the bulk confirmation for ids. An empty set is a no-op.
func (f *DeleteFlow) ConfirmBulk(kind entity.Kind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ids = append([]string(nil), ids...)
	html, err := templates.Render(context.Background(), templates.BulkDeleteConfirmation(kind, ids))
	if err != nil {
		return errors.Wrap(err, "render bulk delete confirmation")
	}
	ticket := f.rt.Container.Ticket()
	f.setPending(pendingDeletion{ref: entity.Reference{Kind: kind}, ids: ids, bulk: true, ticket: ticket})
	if err := f.rt.Container.Render(ticket, html, entity.BulkDeleteConfirmationModalID); err != nil {
		f.reset()
		return err
	}
	return nil
}

// PendingIDs returns the ids awaiting confirmation, if any.
func (f *DeleteFlow) PendingIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != DeleteConfirmationShown {
		return nil
	}
	return append([]string(nil), f.pending.ids...)
}

// take moves a shown confirmation into the deleting state.
func (f *DeleteFlow) take(bulk bool, trigger dom.Trigger) (pendingDeletion, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != DeleteConfirmationShown || f.pending.bulk != bulk {
		return pendingDeletion{}, 0, ErrNoPendingDeletion
	}
	kind, err := entity.ParseKind(trigger.Attr("data-object-type"))
	if err != nil || kind != f.pending.ref.Kind {
		return pendingDeletion{}, 0, errors.Wrap(ErrNoPendingDeletion, "confirm control does not match the pending deletion")
	}
	if !bulk && trigger.Attr("data-object-id") != f.pending.ref.ID {
		return pendingDeletion{}, 0, errors.Wrap(ErrNoPendingDeletion, "confirm control does not match the pending deletion")
	}
	f.state = DeleteDeleting
	f.seq++
	return f.pending, f.seq, nil
}

func (f *DeleteFlow) finish(seq uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq == seq && f.state == DeleteDeleting {
		f.state = DeleteIdle
	}
}

// Cancel dismisses a shown confirmation.
func (f *DeleteFlow) Cancel() {
	f.mu.Lock()
	shown := f.state == DeleteConfirmationShown
	modalID := f.pending.modalID()
	f.mu.Unlock()
	if !shown {
		return
	}
	f.reset()
	_ = f.rt.Modals.Hide(modalID)
}

func (f *DeleteFlow) hideConfirmation(p pendingDeletion) {
	if err := f.rt.Modals.Hide(p.modalID()); err != nil && !errors.Is(err, dom.ErrNotFound) {
		f.rt.log.WithError(err).Error("hide delete confirmation")
	}
}

// Execute runs the confirmed single deletion. trigger is the confirm control.
func (f *DeleteFlow) Execute(trigger dom.Trigger) error {
	p, seq, err := f.take(false, trigger)
	if err != nil {
		return err
	}
	f.rt.Container.Ticket()
	ref := p.ref
	f.rt.Go("delete", ref.Kind.String(), func(ctx context.Context) (func(), error) {
		res, err := f.rt.backend.Delete(ctx, ref)
		return func() { f.finishDelete(seq, p, res, err) }, err
	})
	return nil
}

func (f *DeleteFlow) finishDelete(seq uint64, p pendingDeletion, res ajax.MutationResult, err error) {
	f.finish(seq)
	f.hideConfirmation(p)
	log := f.rt.log.WithFields(logrus.Fields{
		"kind": p.ref.Kind.String(),
		"id":   p.ref.ID,
		"path": entity.DeletePath(p.ref.Kind, p.ref.ID),
	})

	if err != nil {
		log.WithError(err).Error("Delete failed")
		f.rt.Notifier.Error(deleteFailedMessage)
		f.rt.Bus.Publish(DeletionFinished{Kind: p.ref.Kind, IDs: p.ids, Outcome: DeleteFailed, Message: deleteFailedMessage})
		return
	}
	msg := res.Message
	if msg == "" {
		msg = p.ref.Kind.Title() + " deleted successfully!"
	}
	f.rt.Notifier.Success(msg)
	f.rt.Reload.Schedule()
	f.rt.Bus.Publish(DeletionFinished{Kind: p.ref.Kind, IDs: p.ids, Outcome: Deleted, Message: msg})
}

// ExecuteBulk runs the confirmed bulk deletion.
func (f *DeleteFlow) ExecuteBulk(trigger dom.Trigger) error {
	p, seq, err := f.take(true, trigger)
	if err != nil {
		return err
	}
	f.rt.Container.Ticket()
	f.rt.Go("bulk-delete", p.ref.Kind.String(), func(ctx context.Context) (func(), error) {
		res, err := f.rt.backend.BulkDelete(ctx, p.ref.Kind, p.ids)
		return func() { f.finishBulk(seq, p, res, err) }, err
	})
	return nil
}

func (f *DeleteFlow) finishBulk(seq uint64, p pendingDeletion, res ajax.BulkResult, err error) {
	f.finish(seq)
	f.hideConfirmation(p)
	kind := p.ref.Kind
	log := f.rt.log.WithFields(logrus.Fields{
		"kind":  kind.String(),
		"count": len(p.ids),
		"path":  entity.BulkDeletePath(kind),
	})

	switch {
	case err != nil:
		log.WithError(err).Error("Bulk delete failed")
		f.rt.Notifier.Error(deleteFailedMessage)
		f.rt.Bus.Publish(DeletionFinished{Kind: kind, IDs: p.ids, Outcome: DeleteFailed, Message: deleteFailedMessage})
	case len(res.Failed) > 0:
		msg := res.Message
		if msg == "" {
			msg = "Deleted " + strconv.Itoa(len(res.Deleted)) + " of " + strconv.Itoa(len(p.ids)) + " " + kind.Plural() + "."
		}
		log.WithField("failed", strings.Join(res.Failed, ",")).Warn("Bulk delete partially failed")
		f.rt.Notifier.Warning(msg)
		f.rt.Reload.Schedule()
		f.rt.Bus.Publish(DeletionFinished{Kind: kind, IDs: p.ids, Outcome: PartiallyDeleted, Message: msg})
	default:
		msg := res.Message
		if msg == "" {
			msg = "Deleted " + strconv.Itoa(len(p.ids)) + " " + kind.Plural() + "."
		}
		f.rt.Notifier.Success(msg)
		f.rt.Reload.Schedule()
		f.rt.Bus.Publish(DeletionFinished{Kind: kind, IDs: p.ids, Outcome: Deleted, Message: msg})
	}
}
