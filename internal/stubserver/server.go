// Package stubserver is a stand-in for the dashboard server: it serves the
// AJAX fragment and mutation endpoints over an in-memory data set, with
// per-endpoint failure injection and a request log.
package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/go-playground/form"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/pkg/httpapi"
	"github.com/iota-uz/flockdesk/pkg/middleware"
	"github.com/iota-uz/flockdesk/pkg/server"
)

type Op string

const (
	OpDetail     Op = "detail"
	OpForm       Op = "form"
	OpDelete     Op = "delete"
	OpBulkDelete Op = "bulk-delete"
	OpSubmit     Op = "submit"
	OpSearch     Op = "search"
	OpStats      Op = "quick-stats"
	OpPage       Op = "page"
)

// Failure is an injected misbehaviour of one endpoint.
type Failure int

const (
	// FailStatus answers 500 with an error body.
	FailStatus Failure = iota + 1
	// FailLoginPage answers 200 with an HTML login page, as after a session expiry.
	FailLoginPage
	// FailMissingHTML answers 200 with a JSON body lacking the html field.
	FailMissingHTML
	// FailRejected answers 200 with success set to false.
	FailRejected
)

type Record struct {
	Kind         entity.Kind
	ID           string
	Name         string
	Email        string
	Active       bool
	CreatedToday bool
}

// Request is one logged request.
type Request struct {
	Op     Op
	Kind   entity.Kind
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	IDs    []string
	Header http.Header
}

type failureKey struct {
	kind entity.Kind
	op   Op
}

type Server struct {
	log     *logrus.Logger
	decoder *form.Decoder

	mu       sync.Mutex
	records  map[entity.Kind]map[string]Record
	nextID   int
	failures map[failureKey]Failure
	holds    map[failureKey]chan struct{}
	requests []Request
}

func New(log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		log:      log,
		decoder:  form.NewDecoder(),
		records:  map[entity.Kind]map[string]Record{},
		nextID:   100,
		failures: map[failureKey]Failure{},
		holds:    map[failureKey]chan struct{}{},
	}
	for _, k := range entity.Kinds() {
		s.records[k] = map[string]Record{}
	}
	return s
}

// NewSeeded returns a server holding a small demo data set.
func NewSeeded(log *logrus.Logger) *Server {
	s := New(log)
	s.Seed(
		Record{Kind: entity.Member, ID: "42", Name: "Jane Doe", Email: "jane@example.com", Active: true, CreatedToday: true},
		Record{Kind: entity.Member, ID: "43", Name: "John Smith", Email: "john@example.com", Active: true},
		Record{Kind: entity.Member, ID: "44", Name: "Ada Obi", Email: "ada@example.com"},
		Record{Kind: entity.Family, ID: "7", Name: "Doe Family"},
		Record{Kind: entity.Unit, ID: "3", Name: "Youth Unit"},
		Record{Kind: entity.Cell, ID: "9", Name: "Cell North"},
		Record{Kind: entity.Assembly, ID: "1", Name: "Central Assembly"},
	)
	return s
}

func (s *Server) Seed(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Kind][r.ID] = r
	}
}

// Record returns a stored entity.
func (s *Server) Record(kind entity.Kind, id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[kind][id]
	return r, ok
}

// Remove deletes a stored entity behind the page's back.
func (s *Server) Remove(kind entity.Kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[kind], id)
}

func (s *Server) Count(kind entity.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[kind])
}

// Fail makes op on kind misbehave until Recover is called. Use kind 0 for
// search and quick stats.
func (s *Server) Fail(kind entity.Kind, op Op, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failureKey{kind, op}] = f
}

func (s *Server) Recover(kind entity.Kind, op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, failureKey{kind, op})
}

// Hold blocks every request to op on kind until the returned func is called.
func (s *Server) Hold(kind entity.Kind, op Op) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[failureKey{kind, op}] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[failureKey{kind, op}] == ch {
				delete(s.holds, failureKey{kind, op})
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor filters the log by op and kind.
func (s *Server) RequestsFor(kind entity.Kind, op Op) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Kind == kind && r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) Key() string {
	return "/ajax"
}

func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/ajax/search/", s.search).Methods(http.MethodGet)
	r.HandleFunc("/ajax/quick-stats/", s.quickStats).Methods(http.MethodGet)
	r.HandleFunc("/ajax/{plural}/form/", s.form).Methods(http.MethodGet)
	r.HandleFunc("/ajax/{plural}/form/{id}/", s.form).Methods(http.MethodGet)
	r.HandleFunc("/ajax/{plural}/delete/{id}/", s.delete).Methods(http.MethodPost)
	r.HandleFunc("/ajax/{plural}/bulk-delete/", s.bulkDelete).Methods(http.MethodPost)
	r.HandleFunc("/ajax/{plural}/create/", s.submit).Methods(http.MethodPost)
	r.HandleFunc("/ajax/{plural}/update/{id}/", s.submit).Methods(http.MethodPost)
	r.HandleFunc("/ajax/{plural}/{id}/", s.detail).Methods(http.MethodGet)
	r.HandleFunc("/{plural}/", s.page).Methods(http.MethodGet)
}

func (s *Server) httpServer() *server.HTTPServer {
	srv := server.NewHTTPServer(
		[]server.Controller{s},
		[]mux.MiddlewareFunc{middleware.WithLogger(s.log, middleware.DefaultLoggerOptions())},
		nil, nil,
	)
	srv.EncodedPath = true
	return srv
}

// Handler returns the full handler chain: request logging, routing, gzip.
func (s *Server) Handler() http.Handler {
	return s.httpServer().Handler()
}

// Serve runs the stub on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	return s.httpServer().Start(ctx, addr)
}

func (s *Server) kindOf(r *http.Request) (entity.Kind, bool) {
	k, err := entity.ParseKind(mux.Vars(r)["plural"])
	return k, err == nil
}

func idOf(r *http.Request) string {
	raw := mux.Vars(r)["id"]
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}

// enter logs the request, waits on a hold and returns the injected failure.
func (s *Server) enter(r *http.Request, kind entity.Kind, op Op, ids []string) Failure {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
	}
	req := Request{
		Op:     op,
		Kind:   kind,
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.Query(),
		Form:   r.PostForm,
		IDs:    ids,
		Header: r.Header.Clone(),
	}
	key := failureKey{kind, op}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	hold := s.holds[key]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[key]
}

// failFragment writes the injected failure of a fragment endpoint.
func failFragment(w http.ResponseWriter, f Failure) bool {
	switch f {
	case FailStatus:
		_ = httpapi.WriteFragmentError(w, http.StatusInternalServerError, "injected failure")
	case FailLoginPage:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loginPage))
	case FailMissingHTML:
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{})
	case FailRejected:
		_ = httpapi.WriteFragmentError(w, http.StatusOK, "injected rejection")
	default:
		return false
	}
	return true
}

func failMutation(w http.ResponseWriter, f Failure) bool {
	switch f {
	case FailStatus:
		_ = httpapi.WriteMutationFailure(w, http.StatusInternalServerError, "injected failure")
	case FailLoginPage:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loginPage))
	case FailMissingHTML:
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{})
	case FailRejected:
		_ = httpapi.WriteMutationFailure(w, http.StatusOK, "injected rejection")
	default:
		return false
	}
	return true
}

func writeComponent(r *http.Request, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(r.Context(), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := idOf(r)
	if failFragment(w, s.enter(r, kind, OpDetail, []string{id})) {
		return
	}
	rec, found := s.Record(kind, id)
	if !found {
		_ = httpapi.WriteFragmentError(w, http.StatusInternalServerError, "No "+kind.Title()+" matches the given query.")
		return
	}
	html, err := writeComponent(r, detailFragment(rec))
	if err != nil {
		_ = httpapi.WriteFragmentError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"html": html})
}

func (s *Server) form(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := idOf(r)
	var ids []string
	if id != "" {
		ids = []string{id}
	}
	if failFragment(w, s.enter(r, kind, OpForm, ids)) {
		return
	}
	var rec *Record
	if id != "" {
		found, ok := s.Record(kind, id)
		if !ok {
			_ = httpapi.WriteFragmentError(w, http.StatusInternalServerError, "No "+kind.Title()+" matches the given query.")
			return
		}
		rec = &found
	}
	html, err := writeComponent(r, formFragment(kind, rec))
	if err != nil {
		_ = httpapi.WriteFragmentError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"html": html})
}

type mutationSuccess struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := idOf(r)
	if failMutation(w, s.enter(r, kind, OpDelete, []string{id})) {
		return
	}
	s.mu.Lock()
	rec, found := s.records[kind][id]
	delete(s.records[kind], id)
	s.mu.Unlock()
	if !found {
		_ = httpapi.WriteMutationFailure(w, http.StatusInternalServerError, "No "+kind.Title()+" matches the given query.")
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mutationSuccess{
		Success: true,
		Message: kind.Title() + " " + rec.Name + " deleted successfully!",
	})
}

type bulkDeleteForm struct {
	IDs []string `form:"ids"`
}

type bulkDeleteResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

func (s *Server) bulkDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		_ = httpapi.WriteMutationFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	var body bulkDeleteForm
	if err := s.decoder.Decode(&body, r.PostForm); err != nil {
		_ = httpapi.WriteMutationFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if failMutation(w, s.enter(r, kind, OpBulkDelete, body.IDs)) {
		return
	}
	if len(body.IDs) == 0 {
		_ = httpapi.WriteMutationFailure(w, http.StatusBadRequest, "No ids given")
		return
	}

	res := bulkDeleteResult{Deleted: []string{}, Failed: []string{}}
	s.mu.Lock()
	for _, id := range body.IDs {
		if _, found := s.records[kind][id]; found {
			delete(s.records[kind], id)
			res.Deleted = append(res.Deleted, id)
		} else {
			res.Failed = append(res.Failed, id)
		}
	}
	s.mu.Unlock()

	res.Success = len(res.Failed) == 0
	switch {
	case res.Success:
		res.Message = strconv.Itoa(len(res.Deleted)) + " " + kind.Plural() + " deleted successfully!"
	case len(res.Deleted) > 0:
		res.Message = strconv.Itoa(len(res.Deleted)) + " of " + strconv.Itoa(len(body.IDs)) + " " + kind.Plural() + " deleted."
	default:
		res.Message = "No " + kind.Plural() + " were deleted."
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}

type fieldError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := idOf(r)
	var ids []string
	if id != "" {
		ids = []string{id}
	}
	if failMutation(w, s.enter(r, kind, OpSubmit, ids)) {
		return
	}

	name := strings.TrimSpace(r.PostForm.Get("name"))
	if name == "" {
		// The real server sends form errors as a JSON document inside a string.
		encoded, _ := json.Marshal(map[string][]fieldError{
			"name": {{Message: "This field is required.", Code: "required"}},
		})
		_ = httpapi.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"errors":  string(encoded),
		})
		return
	}

	s.mu.Lock()
	verb := "updated"
	if id == "" {
		s.nextID++
		id = strconv.Itoa(s.nextID)
		verb = "created"
	} else if _, found := s.records[kind][id]; !found {
		s.mu.Unlock()
		_ = httpapi.WriteMutationFailure(w, http.StatusInternalServerError, "No "+kind.Title()+" matches the given query.")
		return
	}
	s.records[kind][id] = Record{Kind: kind, ID: id, Name: name, Email: r.PostForm.Get("email"), CreatedToday: verb == "created"}
	s.mu.Unlock()

	_ = httpapi.WriteJSON(w, http.StatusOK, mutationSuccess{
		Success: true,
		Message: kind.Title() + " " + name + " " + verb + " successfully!",
	})
}

type searchHit struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if failFragment(w, s.enter(r, 0, OpSearch, nil)) {
		return
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	results := map[string][]searchHit{}
	if q != "" {
		s.mu.Lock()
		for _, k := range entity.Kinds() {
			hits := []searchHit{}
			for _, rec := range s.records[k] {
				if strings.Contains(strings.ToLower(rec.Name), q) || strings.Contains(strings.ToLower(rec.Email), q) {
					hits = append(hits, searchHit{ID: rec.ID, Name: rec.Name, Type: k.Title(), Email: rec.Email})
				}
			}
			sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
			results[k.Plural()] = hits
		}
		s.mu.Unlock()
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, results)
}

func (s *Server) quickStats(w http.ResponseWriter, r *http.Request) {
	if failFragment(w, s.enter(r, 0, OpStats, nil)) {
		return
	}
	s.mu.Lock()
	total, active, today := 0, 0, 0
	for _, rec := range s.records[entity.Member] {
		total++
		if rec.Active {
			active++
		}
		if rec.CreatedToday {
			today++
		}
	}
	s.mu.Unlock()
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]int{
		"total_members":     total,
		"active_members":    active,
		"new_members_today": today,
	})
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f := s.enter(r, kind, OpPage, nil); f == FailStatus {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	records := make([]Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		records = append(records, rec)
	}
	s.mu.Unlock()
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := listPage(kind, records).Render(r.Context(), w); err != nil {
		s.log.WithError(err).Error("render list page")
	}
}
