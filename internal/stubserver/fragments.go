package stubserver

import (
	"context"
	"io"
	"strconv"

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

func detailFragment(rec Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			`<div class="modal fade" id="`, entity.DetailModalID(rec.Kind), `" tabindex="-1">`,
			`<div class="modal-dialog"><div class="modal-content">`,
			`<div class="modal-header"><h5 class="modal-title">`, templ.EscapeString(rec.Name), `</h5>`,
			`<button type="button" class="btn-close" data-bs-dismiss="modal"></button></div>`,
			`<div class="modal-body"><dl>`,
			`<dt>ID</dt><dd class="entity-id">`, templ.EscapeString(rec.ID), `</dd>`,
			`<dt>Email</dt><dd class="entity-email">`, templ.EscapeString(rec.Email), `</dd>`,
			`</dl></div>`,
			`<div class="modal-footer">`,
			`<button type="button" class="btn btn-primary `, entity.TriggerClass(entity.Edit, rec.Kind), `" `,
			entity.IDAttr(rec.Kind), `="`, templ.EscapeString(rec.ID), `">Edit</button>`,
			`<button type="button" class="btn btn-secondary" data-bs-dismiss="modal">Close</button>`,
			`</div></div></div></div>`,
		)
	})
}

func formFragment(kind entity.Kind, rec *Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := "Add New " + kind.Title()
		idAttr := ""
		name, email := "", ""
		if rec != nil {
			title = "Edit " + kind.Title() + ": " + rec.Name
			idAttr = ` ` + entity.IDAttr(kind) + `="` + templ.EscapeString(rec.ID) + `"`
			name, email = rec.Name, rec.Email
		}
		return write(w,
			`<div class="modal fade" id="`, entity.FormModalID(kind), `" tabindex="-1">`,
			`<div class="modal-dialog"><div class="modal-content">`,
			`<form id="`, kind.String(), `Form" method="post"`, idAttr, `>`,
			`<div class="modal-header"><h5 class="modal-title">`, templ.EscapeString(title), `</h5>`,
			`<button type="button" class="btn-close" data-bs-dismiss="modal"></button></div>`,
			`<div class="modal-body">`,
			`<input type="hidden" name="csrfmiddlewaretoken" value="stub">`,
			`<input type="text" class="form-control" name="name" value="`, templ.EscapeString(name), `">`,
			`<input type="email" class="form-control" name="email" value="`, templ.EscapeString(email), `">`,
			`</div>`,
			`<div class="modal-footer">`,
			`<button type="button" class="btn btn-secondary" data-bs-dismiss="modal">Cancel</button>`,
			`<button type="submit" class="btn btn-primary" id="`, kind.String(), `SaveBtn">Save</button>`,
			`</div></form></div></div></div>`,
		)
	})
}

func listPage(kind entity.Kind, records []Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			`<!DOCTYPE html><html><head><title>`, kind.Plural(), `</title></head><body>`,
			`<h1>`, templ.EscapeString(kind.Title()), ` list (`, strconv.Itoa(len(records)), `)</h1>`,
		); err != nil {
			return err
		}
		if len(records) == 0 {
			if err := write(w, `<p class="empty">Nothing here yet.</p>`,
				`<button type="button" class="btn btn-primary" id="`, entity.AddButtonIDs(kind)[1], `">Add</button>`); err != nil {
				return err
			}
		} else {
			if err := write(w, `<button type="button" class="btn btn-primary" id="`, entity.AddButtonIDs(kind)[0], `">Add</button>`); err != nil {
				return err
			}
			if kind == entity.Member {
				if err := write(w, `<button type="button" class="btn btn-danger" id="`, entity.BulkDeleteButtonID, `">Delete selected</button>`); err != nil {
					return err
				}
			}
			if err := write(w, `<table class="table"><tbody>`); err != nil {
				return err
			}
			for _, rec := range records {
				id := templ.EscapeString(rec.ID)
				name := templ.EscapeString(rec.Name)
				idAttr := entity.IDAttr(kind) + `="` + id + `"`
				if err := write(w,
					`<tr id="row-`, id, `">`,
					`<td><input type="checkbox" class="form-check-input `, entity.CheckboxClass(kind), `" value="`, id, `"></td>`,
					`<td class="name">`, name, `</td>`,
					`<td>`,
					`<a href="#" class="btn btn-sm `, entity.TriggerClass(entity.View, kind), `" `, idAttr, `><i class="fas fa-eye"></i> View</a>`,
					`<a href="#" class="btn btn-sm `, entity.TriggerClass(entity.Edit, kind), `" `, idAttr, `><i class="fas fa-edit"></i> Edit</a>`,
					`<a href="#" class="btn btn-sm `, entity.TriggerClass(entity.Delete, kind), `" `, idAttr, ` `,
					entity.NameAttr(kind), `="`, name, `"><i class="fas fa-trash"></i> Delete</a>`,
					`</td></tr>`,
				); err != nil {
					return err
				}
			}
			if err := write(w, `</tbody></table>`); err != nil {
				return err
			}
		}
		return write(w, `<div id="`, entity.ContainerID, `"></div></body></html>`)
	})
}

const loginPage = `<!DOCTYPE html><html><head><title>Log in</title></head><body><form method="post" action="/accounts/login/"><input name="username"><input name="password" type="password"></form></body></html>`
