package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Trigger is a snapshot of the element an event was fired on.
type Trigger struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   map[string]string
	// ModalID is the id of the closest enclosing .modal, if any.
	ModalID string
	// FormSelector locates the form the element belongs to, if any.
	FormSelector string
	// ToastID is the id of the closest enclosing .toast, if any.
	ToastID string
	// Ancestors are the enclosing elements below <body>, innermost first.
	// Their own Ancestors are left empty.
	Ancestors []Trigger
}

func newTrigger(sel *goquery.Selection) Trigger {
	t := snapshot(sel)
	sel.ParentsUntil("body").Each(func(_ int, parent *goquery.Selection) {
		t.Ancestors = append(t.Ancestors, snapshot(parent))
	})
	return t
}

// Path is the element followed by its ancestors, the order in which a
// delegated handler looks for a match.
func (t Trigger) Path() []Trigger {
	out := make([]Trigger, 0, len(t.Ancestors)+1)
	out = append(out, t)
	return append(out, t.Ancestors...)
}

func snapshot(sel *goquery.Selection) Trigger {
	t := Trigger{
		Tag:   goquery.NodeName(sel),
		Attrs: map[string]string{},
	}
	for _, a := range sel.Nodes[0].Attr {
		t.Attrs[a.Key] = a.Val
	}
	t.ID = t.Attrs["id"]
	t.Classes = strings.Fields(t.Attrs["class"])
	t.ModalID = sel.Closest(".modal").AttrOr("id", "")
	t.ToastID = sel.Closest(".toast").AttrOr("id", "")

	form := sel
	if t.Tag != "form" {
		form = sel.Closest("form")
	}
	if form.Length() > 0 {
		if id, ok := form.Attr("id"); ok && id != "" {
			t.FormSelector = "form#" + id
		} else if t.ModalID != "" {
			t.FormSelector = "#" + t.ModalID + " form"
		}
	}
	return t
}

func (t Trigger) HasClass(class string) bool {
	for _, c := range t.Classes {
		if c == class {
			return true
		}
	}
	return false
}

func (t Trigger) Attr(name string) string {
	return t.Attrs[name]
}
