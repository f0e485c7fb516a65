package entity

import (
	"strings"

	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrMissingID = serrors.NewError("ENTITY_MISSING_ID", "entity id attribute is missing", "")

// Reference identifies one entity for the duration of a single action.
// DisplayName is only used for delete confirmation text.
type Reference struct {
	ID          string
	Kind        Kind
	DisplayName string
}

func (r Reference) IsNew() bool {
	return strings.TrimSpace(r.ID) == ""
}

// IDAttr is the data attribute carrying the id, e.g. "data-member-id".
func IDAttr(k Kind) string {
	return "data-" + k.String() + "-id"
}

// NameAttr is the data attribute carrying the display name.
func NameAttr(k Kind) string {
	return "data-" + k.String() + "-name"
}

// ReferenceFromAttrs reads id and name verbatim from element attributes.
func ReferenceFromAttrs(k Kind, attrs map[string]string) (Reference, error) {
	id, ok := attrs[IDAttr(k)]
	if !ok || strings.TrimSpace(id) == "" {
		return Reference{Kind: k}, ErrMissingID
	}
	return Reference{
		ID:          id,
		Kind:        k,
		DisplayName: attrs[NameAttr(k)],
	}, nil
}
