package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/overlay"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/templates"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type toastStyle struct {
	color string
	icon  string
}

var toastStyles = map[Severity]toastStyle{
	SeveritySuccess: {"success", "check-circle"},
	SeverityError:   {"danger", "exclamation-triangle"},
	SeverityWarning: {"warning", "exclamation-triangle"},
	SeverityInfo:    {"info", "info-circle"},
}

// Normalize maps anything unknown to info.
func (s Severity) Normalize() Severity {
	if _, ok := toastStyles[s]; ok {
		return s
	}
	return SeverityInfo
}

// Style returns the background color and icon name of the severity.
func (s Severity) Style() (color, icon string) {
	st := toastStyles[s.Normalize()]
	return st.color, st.icon
}

// Notifier shows toasts. At most one toast node exists at a time.
type Notifier struct {
	rt *Runtime
}

func NewNotifier(rt *Runtime) *Notifier {
	n := &Notifier{rt: rt}
	rt.Bus.Subscribe(func(ev overlay.ToastHidden) {
		rt.Page.Remove("#" + ev.ID)
	})
	return n
}

// Show replaces any toast on the page with a new one and returns its id.
// It must run on the loop.
func (n *Notifier) Show(severity Severity, message string) string {
	for _, t := range n.rt.Page.Triggers(".toast") {
		if t.ID != "" {
			n.rt.Toasts.Forget(t.ID)
		}
	}
	n.rt.Page.Remove(".toast")

	severity = severity.Normalize()
	color, icon := severity.Style()
	id := "toast-" + uuid.NewString()
	html, err := templates.Render(context.Background(), templates.Toast(id, color, icon, message))
	if err != nil {
		n.rt.log.WithError(err).Error("render toast")
		return ""
	}
	n.rt.Page.AppendToBody(html)
	if err := n.rt.Toasts.Show(id); err != nil {
		n.rt.log.WithError(err).Error("show toast")
	}
	metricsSingleton().toasts.WithLabelValues(string(severity)).Inc()
	return id
}

func (n *Notifier) Success(message string) string {
	return n.Show(SeveritySuccess, message)
}

func (n *Notifier) Error(message string) string {
	return n.Show(SeverityError, message)
}

func (n *Notifier) Warning(message string) string {
	return n.Show(SeverityWarning, message)
}
