package services

import "github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"

// Reloaded fires after the page was reloaded. Path is empty when no page was
// loaded and the reload had nothing to fetch.
type Reloaded struct {
	Path string
}

type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota + 1
	PartiallyDeleted
	DeleteFailed
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case PartiallyDeleted:
		return "partially-deleted"
	case DeleteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeletionFinished fires once a confirmed single or bulk deletion completes.
type DeletionFinished struct {
	Kind    entity.Kind
	IDs     []string
	Outcome DeleteOutcome
	Message string
}

// FormSubmitted fires once a form submission completes.
type FormSubmitted struct {
	Ref     entity.Reference
	Success bool
	Invalid bool
	Message string
}
