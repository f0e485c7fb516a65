package ajax

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Fragment is the body of every fragment endpoint: {"html": "..."} or {"error": "..."}.
type Fragment struct {
	HTML  *string `json:"html"`
	Error string  `json:"error,omitempty"`
}

// MutationResult is the body of delete, create and update endpoints.
type MutationResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// FieldErrors decodes the validation errors. The server sends them either as
// an object or as a JSON document encoded in a string.
func (r MutationResult) FieldErrors() map[string][]string {
	raw := bytes.TrimSpace(r.Errors)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(s)
	}

	var plain map[string][]string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var detailed map[string][]struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detailed); err != nil {
		return nil
	}
	out := make(map[string][]string, len(detailed))
	for field, list := range detailed {
		for _, e := range list {
			out[field] = append(out[field], e.Message)
		}
	}
	return out
}

func (r MutationResult) HasFieldErrors() bool {
	return len(r.FieldErrors()) > 0
}

// BulkResult is the body of the bulk delete endpoint.
type BulkResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// ID accepts both JSON numbers and strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type SearchHit struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Assembly    string `json:"assembly,omitempty"`
	URL         string `json:"url,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// SearchResults groups hits by kind. An empty query yields no groups at all.
type SearchResults struct {
	Members    []SearchHit `json:"members,omitempty"`
	Families   []SearchHit `json:"families,omitempty"`
	Assemblies []SearchHit `json:"assemblies,omitempty"`
	Units      []SearchHit `json:"units,omitempty"`
	Cells      []SearchHit `json:"cells,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// All flattens the groups in a stable order.
func (r SearchResults) All() []SearchHit {
	out := make([]SearchHit, 0, len(r.Members)+len(r.Families)+len(r.Assemblies)+len(r.Units)+len(r.Cells))
	out = append(out, r.Members...)
	out = append(out, r.Families...)
	out = append(out, r.Assemblies...)
	out = append(out, r.Units...)
	out = append(out, r.Cells...)
	return out
}

type QuickStats struct {
	TotalMembers    int    `json:"total_members"`
	ActiveMembers   int    `json:"active_members"`
	NewMembersToday int    `json:"new_members_today"`
	Error           string `json:"error,omitempty"`
}

func (s QuickStats) String() string {
	var b strings.Builder
	b.WriteString("total=")
	b.WriteString(strconv.Itoa(s.TotalMembers))
	b.WriteString(" active=")
	b.WriteString(strconv.Itoa(s.ActiveMembers))
	b.WriteString(" new_today=")
	b.WriteString(strconv.Itoa(s.NewMembersToday))
	return b.String()
}
