package dom

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/go-faster/errors"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrNotFound = serrors.NewError("DOM_NOT_FOUND", "no element matches the selector", "")

const blankPage = `<!DOCTYPE html><html><head></head><body><div id="` + entity.ContainerID + `"></div></body></html>`

// Page is the headless document the dashboard renders into. It is safe for
// concurrent use, though mutations are expected to come from the event loop.
type Page struct {
	mu  sync.RWMutex
	doc *goquery.Document
}

// NewPage returns a page holding only the modal container.
func NewPage() *Page {
	p := &Page{}
	if err := p.Load(blankPage); err != nil {
		panic(err)
	}
	return p
}

// Load replaces the whole document. A missing modal container is added to
// the body so fragments always have a mount point.
func (p *Page) Load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return errors.Wrap(err, "parse page")
	}
	if doc.Find("#"+entity.ContainerID).Length() == 0 {
		doc.Find("body").AppendHtml(`<div id="` + entity.ContainerID + `"></div>`)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// ReplaceContainer swaps the modal container's content for html.
func (p *Page) ReplaceContainer(html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.doc.Find("#" + entity.ContainerID)
	if c.Length() == 0 {
		return errors.Wrap(ErrNotFound, "#"+entity.ContainerID)
	}
	c.SetHtml(html)
	return nil
}

func (p *Page) AppendToBody(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("body").AppendHtml(html)
}

// Remove deletes every match and returns how many there were.
func (p *Page) Remove(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector)
	n := sel.Length()
	sel.Remove()
	return n
}

func (p *Page) Count(selector string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Find(selector).Length()
}

func (p *Page) Exists(selector string) bool {
	return p.Count(selector) > 0
}

func (p *Page) HTML() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Html()
}

// OuterHTML returns the markup of the first match, or "".
func (p *Page) OuterHTML(selector string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return html
}

// Text returns the whitespace-trimmed text of the first match.
func (p *Page) Text(selector string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return strings.TrimSpace(p.doc.Find(selector).First().Text())
}

func (p *Page) Attr(selector, name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Find(selector).First().Attr(name)
}

func (p *Page) HasClass(selector, class string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Find(selector).First().HasClass(class)
}

// AddClass adds class to every match and reports how many matched.
func (p *Page) AddClass(selector, class string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector)
	sel.AddClass(class)
	return sel.Length()
}

func (p *Page) RemoveClass(selector, class string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector)
	sel.RemoveClass(class)
	return sel.Length()
}

// SetChecked ticks or clears every matching checkbox.
func (p *Page) SetChecked(selector string, checked bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector)
	if checked {
		sel.SetAttr("checked", "checked")
	} else {
		sel.RemoveAttr("checked")
	}
	return sel.Length()
}

// SetValue sets the value of the first matching input, textarea or select.
func (p *Page) SetValue(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return errors.Wrap(ErrNotFound, selector)
	}
	switch goquery.NodeName(sel) {
	case "textarea":
		sel.SetText(value)
	case "select":
		options := sel.Find("option")
		options.RemoveAttr("selected")
		options.FilterFunction(func(_ int, o *goquery.Selection) bool {
			return optionValue(o) == value
		}).First().SetAttr("selected", "selected")
	default:
		sel.SetAttr("value", value)
	}
	return nil
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

// FormValues collects the successful controls of the first matching form the
// way a browser would serialise it.
func (p *Page) FormValues(selector string) (url.Values, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	form := p.doc.Find(selector).First()
	if form.Length() == 0 {
		return nil, errors.Wrap(ErrNotFound, selector)
	}

	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, el *goquery.Selection) {
		name, ok := el.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(el) {
		case "textarea":
			values.Add(name, el.Text())
		case "select":
			selected := el.Find("option[selected]")
			if selected.Length() == 0 {
				if _, multiple := el.Attr("multiple"); !multiple {
					selected = el.Find("option").First()
				}
			}
			selected.Each(func(_ int, o *goquery.Selection) {
				values.Add(name, optionValue(o))
			})
		default:
			typ := strings.ToLower(el.AttrOr("type", "text"))
			switch typ {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); !checked {
					return
				}
				values.Add(name, el.AttrOr("value", "on"))
			default:
				values.Add(name, el.AttrOr("value", ""))
			}
		}
	})
	return values, nil
}

// CheckedValues returns the value of every checked checkbox carrying class,
// in document order.
func (p *Page) CheckedValues(class string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.doc.Nodes) == 0 {
		return nil, nil
	}
	expr := `//input[@type='checkbox'][@checked][contains(concat(' ', normalize-space(@class), ' '), ' ` + class + ` ')]`
	nodes, err := htmlquery.QueryAll(p.doc.Nodes[0], expr)
	if err != nil {
		return nil, errors.Wrap(err, "query checkboxes")
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, htmlquery.SelectAttr(n, "value"))
	}
	return out, nil
}

// Trigger describes the first element matching selector.
func (p *Page) Trigger(selector string) (Trigger, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return Trigger{}, errors.Wrap(ErrNotFound, selector)
	}
	return newTrigger(sel), nil
}

// Triggers describes every element matching selector.
func (p *Page) Triggers(selector string) []Trigger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Trigger
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, newTrigger(sel))
	})
	return out
}
