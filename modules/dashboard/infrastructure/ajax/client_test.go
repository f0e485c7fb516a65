package ajax_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/flockdesk/internal/stubserver"
	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/pkg/logging"
)

func newClient(t *testing.T, baseURL string, mutate ...func(*ajax.Options)) *ajax.Client {
	t.Helper()
	opts := ajax.Options{
		BaseURL:           baseURL,
		SessionCookieName: "sessionid",
		SessionID:         "s3cr3t",
		CSRFCookieName:    "csrftoken",
		CSRFToken:         "tok",
		RequestIDHeader:   "X-Request-Id",
		Logger:            logging.Discard(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := ajax.NewClient(opts)
	require.NoError(t, err)
	return c
}

func newStubClient(t *testing.T) (*stubserver.Server, *ajax.Client) {
	t.Helper()
	stub := stubserver.NewSeeded(logging.Discard())
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)
	return stub, newClient(t, ts.URL)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "localhost:8000", "://bad"} {
		_, err := ajax.NewClient(ajax.Options{BaseURL: raw})
		require.Error(t, err, raw)
	}
}

func TestClient_Headers(t *testing.T) {
	t.Parallel()
	stub, c := newStubClient(t)

	_, err := c.Detail(context.Background(), entity.Reference{Kind: entity.Member, ID: "42"})
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), entity.Reference{Kind: entity.Member, ID: "43"})
	require.NoError(t, err)

	get := stub.RequestsFor(entity.Member, stubserver.OpDetail)
	require.Len(t, get, 1)
	h := get[0].Header
	assert.Equal(t, "XMLHttpRequest", h.Get("X-Requested-With"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.NotEmpty(t, h.Get("X-Request-Id"))
	assert.Contains(t, h.Get("Cookie"), "sessionid=s3cr3t")
	assert.Empty(t, h.Get("X-CSRFToken"))

	post := stub.RequestsFor(entity.Member, stubserver.OpDelete)
	require.Len(t, post, 1)
	assert.Equal(t, "tok", post[0].Header.Get("X-CSRFToken"))
	assert.Contains(t, post[0].Header.Get("Cookie"), "csrftoken=tok")
	assert.Equal(t, "/ajax/members/delete/43/", post[0].Path)
}

func TestClient_Detail(t *testing.T) {
	t.Parallel()
	_, c := newStubClient(t)

	html, err := c.Detail(context.Background(), entity.Reference{Kind: entity.Member, ID: "42"})
	require.NoError(t, err)
	assert.Contains(t, html, "Jane Doe")
}

func TestClient_FragmentFailures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		failure stubserver.Failure
		target  error
		result  string
	}{
		{"status", stubserver.FailStatus, ajax.ErrStatus, ajax.ResultStatus},
		{"login page", stubserver.FailLoginPage, ajax.ErrMalformed, ajax.ResultMalformed},
		{"missing html", stubserver.FailMissingHTML, ajax.ErrMalformed, ajax.ResultMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stub, c := newStubClient(t)
			stub.Fail(entity.Family, stubserver.OpDetail, tc.failure)

			_, err := c.Detail(context.Background(), entity.Reference{Kind: entity.Family, ID: "7"})
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.result, ajax.Classify(err))
		})
	}
}

func TestClient_Transport(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c := newClient(t, base)
	_, err := c.Detail(context.Background(), entity.Reference{Kind: entity.Unit, ID: "3"})
	require.ErrorIs(t, err, ajax.ErrTransport)
	assert.Equal(t, ajax.ResultTransport, ajax.Classify(err))
}

func TestClient_Cancelled(t *testing.T) {
	t.Parallel()
	stub, c := newStubClient(t)
	release := stub.Hold(entity.Cell, stubserver.OpDetail)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Detail(ctx, entity.Reference{Kind: entity.Cell, ID: "9"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ajax.ResultCancelled, ajax.Classify(err))
}

func TestClient_DeleteRejected(t *testing.T) {
	t.Parallel()
	stub, c := newStubClient(t)
	stub.Fail(entity.Member, stubserver.OpDelete, stubserver.FailRejected)

	_, err := c.Delete(context.Background(), entity.Reference{Kind: entity.Member, ID: "42"})
	require.ErrorIs(t, err, ajax.ErrRejected)
	_, found := stub.Record(entity.Member, "42")
	assert.True(t, found)
}

func TestClient_BulkDelete(t *testing.T) {
	t.Parallel()
	stub, c := newStubClient(t)

	res, err := c.BulkDelete(context.Background(), entity.Member, []string{"42", "43"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"42", "43"}, res.Deleted)

	reqs := stub.RequestsFor(entity.Member, stubserver.OpBulkDelete)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"42", "43"}, reqs[0].Form["ids"])
}

func TestClient_BulkDeletePartialAndNone(t *testing.T) {
	t.Parallel()
	_, c := newStubClient(t)

	res, err := c.BulkDelete(context.Background(), entity.Member, []string{"42", "nope"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"nope"}, res.Failed)

	_, err = c.BulkDelete(context.Background(), entity.Member, []string{"nope"})
	require.ErrorIs(t, err, ajax.ErrRejected)
}

func TestClient_SubmitValidation(t *testing.T) {
	t.Parallel()
	_, c := newStubClient(t)

	res, status, err := c.Submit(context.Background(), entity.Reference{Kind: entity.Member}, url.Values{"name": {""}})
	require.ErrorIs(t, err, ajax.ErrStatus)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string][]string{"name": {"This field is required."}}, res.FieldErrors())

	res, status, err = c.Submit(context.Background(), entity.Reference{Kind: entity.Member}, url.Values{"name": {"New Person"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
}

func TestClient_SearchAndStats(t *testing.T) {
	t.Parallel()
	_, c := newStubClient(t)

	res, err := c.Search(context.Background(), "jane")
	require.NoError(t, err)
	require.Len(t, res.Members, 1)
	assert.Equal(t, ajax.ID("42"), res.Members[0].ID)

	stats, err := c.QuickStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "total=3 active=2 new_today=1", stats.String())
}

func TestClient_GetPage(t *testing.T) {
	t.Parallel()
	stub, c := newStubClient(t)

	html, err := c.GetPage(context.Background(), "/members/")
	require.NoError(t, err)
	assert.Contains(t, html, `id="addMemberBtn"`)
	reqs := stub.RequestsFor(entity.Member, stubserver.OpPage)
	require.Len(t, reqs, 1)
	assert.Equal(t, "text/html", reqs[0].Header.Get("Accept"))
}

func TestMutationResult_FieldErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
		want map[string][]string
	}{
		{"absent", ``, nil},
		{"null", `null`, nil},
		{"object", `{"name":["Required."]}`, map[string][]string{"name": {"Required."}}},
		{"detailed object", `{"email":[{"message":"Enter a valid email address.","code":"invalid"}]}`, map[string][]string{"email": {"Enter a valid email address."}}},
		{"string", `"{\"name\": [{\"message\": \"Required.\", \"code\": \"required\"}]}"`, map[string][]string{"name": {"Required."}}},
		{"garbage", `"not json"`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ajax.MutationResult{Errors: json.RawMessage(tc.raw)}
			assert.Equal(t, tc.want, res.FieldErrors())
			assert.Equal(t, tc.want != nil, res.HasFieldErrors())
		})
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	var hits []ajax.SearchHit
	require.NoError(t, json.Unmarshal([]byte(`[{"id":42},{"id":"a-7"}]`), &hits))
	assert.Equal(t, ajax.ID("42"), hits[0].ID)
	assert.Equal(t, "a-7", hits[1].ID.String())

	var id ajax.ID
	require.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestSearchResults_All(t *testing.T) {
	t.Parallel()
	res := ajax.SearchResults{
		Cells:   []ajax.SearchHit{{ID: "c"}},
		Members: []ajax.SearchHit{{ID: "m"}},
	}
	all := res.All()
	require.Len(t, all, 2)
	assert.Equal(t, ajax.ID("m"), all[0].ID)
}
