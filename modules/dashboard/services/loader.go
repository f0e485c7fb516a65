package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/templates"
)

// Loader fetches detail and form fragments and presents them.
type Loader struct {
	rt       *Runtime
	fallback FallbackPolicy
}

func NewLoader(rt *Runtime, fallback FallbackPolicy) *Loader {
	if fallback == nil {
		fallback, _ = NewFallbackPolicy("")
	}
	return &Loader{rt: rt, fallback: fallback}
}

func (l *Loader) logger(ref entity.Reference, path string) *logrus.Entry {
	return l.rt.log.WithFields(logrus.Fields{
		"kind": ref.Kind.String(),
		"id":   ref.ID,
		"path": path,
	})
}

// ShowDetails loads the detail fragment of ref into {kind}DetailModal.
func (l *Loader) ShowDetails(ref entity.Reference) {
	ticket := l.rt.Container.Ticket()
	l.rt.Go("detail", ref.Kind.String(), func(ctx context.Context) (func(), error) {
		html, err := l.rt.backend.Detail(ctx, ref)
		return func() { l.finishDetails(ticket, ref, html, err) }, err
	})
}

func (l *Loader) finishDetails(ticket uint64, ref entity.Reference, html string, err error) {
	log := l.logger(ref, entity.DetailPath(ref.Kind, ref.ID))
	if !l.rt.Container.IsCurrent(ticket) {
		metricsSingleton().stale.Inc()
		log.Debug("discarding stale detail response")
		return
	}
	modalID := entity.DetailModalID(ref.Kind)
	if err == nil {
		if rerr := l.rt.Container.Render(ticket, html, modalID); rerr != nil {
			log.WithError(rerr).Error("render detail fragment")
		}
		return
	}

	log.WithError(err).Errorf("Failed to load %s details", ref.Kind)
	switch l.fallback.For(ref.Kind) {
	case FallbackPlaceholder:
		placeholder, rerr := templates.Render(context.Background(), templates.DetailPlaceholder(ref.Kind))
		if rerr != nil {
			log.WithError(rerr).Error("render placeholder")
			return
		}
		metricsSingleton().fallbacks.WithLabelValues(ref.Kind.String()).Inc()
		if rerr := l.rt.Container.Render(ticket, placeholder, modalID); rerr != nil {
			log.WithError(rerr).Error("render placeholder")
		}
	default:
		l.rt.Notifier.Error("Failed to load " + ref.Kind.String() + " details.")
	}
}

// LoadForm loads the edit form of ref, or the create form when ref has no id.
func (l *Loader) LoadForm(ref entity.Reference) {
	ticket := l.rt.Container.Ticket()
	l.rt.Go("form", ref.Kind.String(), func(ctx context.Context) (func(), error) {
		html, err := l.rt.backend.Form(ctx, ref)
		return func() { l.finishForm(ticket, ref, html, err) }, err
	})
}

func (l *Loader) finishForm(ticket uint64, ref entity.Reference, html string, err error) {
	log := l.logger(ref, entity.FormPath(ref.Kind, ref.ID))
	if !l.rt.Container.IsCurrent(ticket) {
		metricsSingleton().stale.Inc()
		log.Debug("discarding stale form response")
		return
	}
	if err != nil {
		log.WithError(err).Errorf("Failed to load %s form", ref.Kind)
		l.rt.Notifier.Error("Failed to load " + ref.Kind.String() + " form. Please try again.")
		return
	}
	if rerr := l.rt.Container.Render(ticket, html, entity.FormModalID(ref.Kind)); rerr != nil && !errors.Is(rerr, ErrStale) {
		log.WithError(rerr).Error("render form fragment")
	}
}
