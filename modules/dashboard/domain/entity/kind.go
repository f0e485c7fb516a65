package entity

import (
	"strings"

	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrUnknownKind = serrors.NewError("ENTITY_UNKNOWN_KIND", "unknown entity kind", "")

// Kind is one of the five managed organisational entity types.
type Kind int

const (
	Member Kind = iota + 1
	Family
	Unit
	Cell
	Assembly
)

var kinds = []Kind{Member, Family, Unit, Cell, Assembly}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

var kindNames = map[Kind]struct {
	singular string
	plural   string
	title    string
}{
	Member:   {"member", "members", "Member"},
	Family:   {"family", "families", "Family"},
	Unit:     {"unit", "units", "Unit"},
	Cell:     {"cell", "cells", "Cell"},
	Assembly: {"assembly", "assemblies", "Assembly"},
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n.singular
	}
	return "unknown"
}

// Plural is the URL segment used by the server, e.g. "families".
func (k Kind) Plural() string {
	return kindNames[k].plural
}

func (k Kind) Title() string {
	return kindNames[k].title
}

// ParseKind accepts the singular or plural form, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range kinds {
		n := kindNames[k]
		if s == n.singular || s == n.plural {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Verb is what a trigger asks to do with an entity.
type Verb int

const (
	View Verb = iota + 1
	Edit
	Delete
	// Add and Submit are not reachable through {verb}-{kind} classes.
	Add
	Submit
)

var verbNames = map[Verb]string{
	View:   "view",
	Edit:   "edit",
	Delete: "delete",
	Add:    "add",
	Submit: "submit",
}

// ClassVerbs are the verbs routed by trigger class names.
func ClassVerbs() []Verb {
	return []Verb{View, Edit, Delete}
}

func (v Verb) String() string {
	if s, ok := verbNames[v]; ok {
		return s
	}
	return "unknown"
}

// TriggerClass is the class that marks a trigger element, e.g. "delete-member".
func TriggerClass(v Verb, k Kind) string {
	return v.String() + "-" + k.String()
}

// ParseTriggerClass is the inverse of TriggerClass for the class-routed verbs.
func ParseTriggerClass(class string) (Verb, Kind, bool) {
	verbPart, kindPart, ok := strings.Cut(class, "-")
	if !ok {
		return 0, 0, false
	}
	var verb Verb
	for _, v := range ClassVerbs() {
		if v.String() == verbPart {
			verb = v
		}
	}
	if verb == 0 {
		return 0, 0, false
	}
	for _, k := range kinds {
		if k.String() == kindPart {
			return verb, k, true
		}
	}
	return 0, 0, false
}
