package templates

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
)

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func modalFooterClose(w io.Writer) error {
	return write(w,
		`<div class="modal-footer">`,
		`<button type="button" class="btn btn-secondary" data-bs-dismiss="modal">Close</button>`,
		`</div>`,
	)
}

// DetailPlaceholder is the modal shell shown when a detail fragment could
// not be loaded.
func DetailPlaceholder(kind entity.Kind) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		dialog := "modal-dialog"
		if kind == entity.Assembly {
			dialog += " modal-lg"
		}
		if err := write(w,
			`<div class="modal fade" id="`, templ.EscapeString(entity.DetailModalID(kind)), `" tabindex="-1">`,
			`<div class="`, dialog, `">`,
			`<div class="modal-content">`,
			`<div class="modal-header">`,
			`<h5 class="modal-title">`, templ.EscapeString(kind.Title()), ` Details</h5>`,
			`<button type="button" class="btn-close" data-bs-dismiss="modal"></button>`,
			`</div>`,
			`<div class="modal-body"><p>Loading `, templ.EscapeString(kind.String()), ` details...</p></div>`,
		); err != nil {
			return err
		}
		if err := modalFooterClose(w); err != nil {
			return err
		}
		return write(w, `</div></div></div>`)
	})
}

// DeleteConfirmationMessage is the warning line of the confirmation dialog.
func DeleteConfirmationMessage(name string) string {
	return "Are you sure you want to delete " + name + "?"
}

func confirmationShell(w io.Writer, modalID string, body func(io.Writer) error, button string) error {
	if err := write(w,
		`<div class="modal fade" id="`, modalID, `" tabindex="-1">`,
		`<div class="modal-dialog"><div class="modal-content">`,
		`<div class="modal-header">`,
		`<h5 class="modal-title text-danger">Confirm Deletion</h5>`,
		`<button type="button" class="btn-close" data-bs-dismiss="modal"></button>`,
		`</div>`,
		`<div class="modal-body">`,
	); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	return write(w,
		`<p class="text-muted">This action cannot be undone.</p>`,
		`</div>`,
		`<div class="modal-footer">`,
		`<button type="button" class="btn btn-secondary" data-bs-dismiss="modal">Cancel</button>`,
		button,
		`</div></div></div></div>`,
	)
}

// DeleteConfirmation asks before deleting ref. The confirm button carries the
// id and kind so the click can be routed without any other state.
func DeleteConfirmation(ref entity.Reference) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		button := `<button type="button" class="btn btn-danger" id="` + entity.ConfirmDeleteButtonID +
			`" data-object-id="` + templ.EscapeString(ref.ID) +
			`" data-object-type="` + templ.EscapeString(ref.Kind.String()) + `">Delete</button>`
		return confirmationShell(w, entity.DeleteConfirmationModalID, func(w io.Writer) error {
			return write(w,
				`<p class="text-danger"><i class="fas fa-exclamation-triangle me-2"></i>`,
				templ.EscapeString(DeleteConfirmationMessage(ref.DisplayName)),
				`</p>`,
			)
		}, button)
	})
}

// BulkDeleteConfirmationMessage is the warning line for n selected entities.
func BulkDeleteConfirmationMessage(kind entity.Kind, n int) string {
	noun := kind.String()
	if n != 1 {
		noun = kind.Plural()
	}
	return "Are you sure you want to delete " + strconv.Itoa(n) + " selected " + noun + "?"
}

func BulkDeleteConfirmation(kind entity.Kind, ids []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		button := `<button type="button" class="btn btn-danger" id="` + entity.ConfirmBulkDeleteButtonID +
			`" data-object-ids="` + templ.EscapeString(strings.Join(ids, ",")) +
			`" data-object-type="` + templ.EscapeString(kind.String()) + `">Delete</button>`
		return confirmationShell(w, entity.BulkDeleteConfirmationModalID, func(w io.Writer) error {
			return write(w,
				`<p class="text-danger"><i class="fas fa-exclamation-triangle me-2"></i>`,
				templ.EscapeString(BulkDeleteConfirmationMessage(kind, len(ids))),
				`</p>`,
			)
		}, button)
	})
}

// Toast renders one notification. color and icon come from the severity table.
func Toast(id, color, icon, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			`<div id="`, templ.EscapeString(id), `" class="toast align-items-center text-white bg-`, color,
			` border-0 position-fixed top-0 end-0 m-3" role="alert" style="z-index: 9999;">`,
			`<div class="d-flex"><div class="toast-body">`,
			`<i class="fas fa-`, icon, ` me-2"></i>`,
			templ.EscapeString(message),
			`</div>`,
			`<button type="button" class="btn-close btn-close-white me-2 m-auto" data-bs-dismiss="toast"></button>`,
			`</div></div>`,
		)
	})
}

// Render renders c into a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
