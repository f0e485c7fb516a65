package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iota-uz/flockdesk/modules/dashboard"
	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/modules/dashboard/services"
)

// session is one headless page bound to the configured server.
type session struct {
	m          *dashboard.Module
	client     *ajax.Client
	reloaded   chan struct{}
	waitReload bool
}

func (a *app) newSession(ctx context.Context) (*session, error) {
	opts, client, err := dashboard.OptionsFromConfiguration(a.conf)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	m, err := dashboard.NewModule(opts)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	s := &session{m: m, client: client, reloaded: make(chan struct{}, 1)}
	m.Runtime().Bus.Subscribe(func(services.Reloaded) {
		select {
		case s.reloaded <- struct{}{}:
		default:
		}
	})
	m.Start(ctx)
	return s, nil
}

func (s *session) close() {
	s.m.Close()
}

// open loads the listing of kind so a reload has somewhere to go.
func (s *session) open(ctx context.Context, kind entity.Kind, page string) error {
	if page == "-" {
		return nil
	}
	if page == "" {
		page = entity.ListPath(kind)
	}
	return s.m.Open(ctx, page)
}

// trigger synthesises the row control a user would click.
func trigger(verb entity.Verb, ref entity.Reference) dom.Trigger {
	attrs := map[string]string{entity.IDAttr(ref.Kind): ref.ID}
	if ref.DisplayName != "" {
		attrs[entity.NameAttr(ref.Kind)] = ref.DisplayName
	}
	class := entity.TriggerClass(verb, ref.Kind)
	attrs["class"] = class
	return dom.Trigger{Tag: "a", Classes: []string{class}, Attrs: attrs}
}

func (s *session) dispatch(ctx context.Context, t dom.Trigger) error {
	if err := s.m.Dispatch(ctx, services.ClickEvent(t)); err != nil {
		return err
	}
	return s.m.Settle(ctx)
}

type outcome struct {
	Toast    string   `json:"toast,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Modals   []string `json:"modals,omitempty"`
	Reloaded bool     `json:"reloaded"`
	HTML     string   `json:"html,omitempty"`
}

var severityClasses = map[string]string{
	"bg-success": string(services.SeveritySuccess),
	"bg-danger":  string(services.SeverityError),
	"bg-warning": string(services.SeverityWarning),
	"bg-info":    string(services.SeverityInfo),
}

// finish settles the page, optionally waits for the scheduled reload and
// reports what the user would now see.
func (s *session) finish(ctx context.Context, w io.Writer, withHTML string) error {
	if err := s.m.Settle(ctx); err != nil {
		return err
	}
	out := outcome{Modals: s.m.Runtime().Modals.Visible()}
	page := s.m.Page()
	if toasts := page.Triggers(".toast"); len(toasts) > 0 {
		out.Toast = page.Text(".toast .toast-body")
		for _, c := range toasts[0].Classes {
			if sev, ok := severityClasses[c]; ok {
				out.Severity = sev
			}
		}
	}
	if withHTML != "" {
		out.HTML = page.OuterHTML(withHTML)
	}

	if s.waitReload && s.m.Runtime().Reload.Pending() {
		due, _ := s.m.Runtime().Reload.Due()
		select {
		case <-s.reloaded:
			out.Reloaded = true
		case <-time.After(time.Until(due) + 30*time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := s.m.Settle(ctx); err != nil {
			return err
		}
	}

	if err := writeJSONLine(w, out); err != nil {
		return err
	}
	if out.Severity == string(services.SeverityError) {
		return withCode(exitRejected, fmt.Errorf("%s", out.Toast))
	}
	return nil
}

func parseKind(raw string) (entity.Kind, error) {
	k, err := entity.ParseKind(raw)
	if err != nil {
		names := make([]string, 0, len(entity.Kinds()))
		for _, k := range entity.Kinds() {
			names = append(names, k.String())
		}
		return 0, withCode(exitUsage, fmt.Errorf("unknown kind %q (expected one of %s)", raw, strings.Join(names, ", ")))
	}
	return k, nil
}
