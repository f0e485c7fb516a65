package entity

import (
	"net/url"
)

const (
	ContainerID                   = "modalContainer"
	DeleteConfirmationModalID     = "deleteConfirmationModal"
	BulkDeleteConfirmationModalID = "bulkDeleteConfirmationModal"
	ConfirmDeleteButtonID         = "confirmDeleteBtn"
	ConfirmBulkDeleteButtonID     = "confirmBulkDeleteBtn"
	BulkDeleteButtonID            = "bulkDelete"

	SearchPath     = "/ajax/search/"
	QuickStatsPath = "/ajax/quick-stats/"
)

func ajaxBase(k Kind) string {
	return "/ajax/" + k.Plural() + "/"
}

func escape(id string) string {
	return url.PathEscape(id)
}

// DetailPath is GET /ajax/{plural}/{id}/.
func DetailPath(k Kind, id string) string {
	return ajaxBase(k) + escape(id) + "/"
}

// FormPath is the edit form for a non-empty id and the create form otherwise.
func FormPath(k Kind, id string) string {
	if id == "" {
		return ajaxBase(k) + "form/"
	}
	return ajaxBase(k) + "form/" + escape(id) + "/"
}

func DeletePath(k Kind, id string) string {
	return ajaxBase(k) + "delete/" + escape(id) + "/"
}

func BulkDeletePath(k Kind) string {
	return ajaxBase(k) + "bulk-delete/"
}

// SubmitPath is the create endpoint for an empty id and the update endpoint otherwise.
func SubmitPath(k Kind, id string) string {
	if id == "" {
		return ajaxBase(k) + "create/"
	}
	return ajaxBase(k) + "update/" + escape(id) + "/"
}

// ListPath is the full listing page for a kind.
func ListPath(k Kind) string {
	return "/" + k.Plural() + "/"
}

func DetailModalID(k Kind) string {
	return k.String() + "DetailModal"
}

func FormModalID(k Kind) string {
	return k.String() + "FormModal"
}

// AddButtonIDs are the element ids of the "add" shortcuts for a kind.
func AddButtonIDs(k Kind) []string {
	return []string{"add" + k.Title() + "Btn", "add" + k.Title() + "BtnEmpty"}
}

// CheckboxClass marks the bulk selection checkboxes of a kind.
func CheckboxClass(k Kind) string {
	return k.String() + "-checkbox"
}
