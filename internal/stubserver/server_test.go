package stubserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/flockdesk/internal/stubserver"
	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/pkg/logging"
)

func newStub(t *testing.T) (*stubserver.Server, *httptest.Server) {
	t.Helper()
	stub := stubserver.NewSeeded(logging.Discard())
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)
	return stub, ts
}

func getJSON(t *testing.T, u string, out any) int {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServer_Detail(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/ajax/members/42/", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["html"], `id="memberDetailModal"`)
	assert.Contains(t, body["html"], "Jane Doe")

	reqs := stub.RequestsFor(entity.Member, stubserver.OpDetail)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"42"}, reqs[0].IDs)
}

func TestServer_DetailUnknownID(t *testing.T) {
	t.Parallel()
	_, ts := newStub(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/ajax/members/999/", &body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["error"])
}

func TestServer_DetailEscapedID(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)
	stub.Seed(stubserver.Record{Kind: entity.Unit, ID: "a/b", Name: "Slash Unit"})

	var body map[string]string
	status := getJSON(t, ts.URL+"/ajax/units/a%2Fb/", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["html"], "Slash Unit")
}

func TestServer_Form(t *testing.T) {
	t.Parallel()
	_, ts := newStub(t)

	var create map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/ajax/families/form/", &create))
	assert.Contains(t, create["html"], "Add New Family")
	assert.NotContains(t, create["html"], "data-family-id")

	var edit map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/ajax/families/form/7/", &edit))
	assert.Contains(t, edit["html"], `data-family-id="7"`)
}

func TestServer_Delete(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	resp, err := http.Post(ts.URL+"/ajax/members/delete/42/", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Contains(t, body.Message, "Jane Doe")
	_, found := stub.Record(entity.Member, "42")
	assert.False(t, found)
}

func TestServer_BulkDelete(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	resp, err := http.PostForm(ts.URL+"/ajax/members/bulk-delete/", url.Values{"ids": {"42", "43", "999"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success bool     `json:"success"`
		Deleted []string `json:"deleted"`
		Failed  []string `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, []string{"42", "43"}, body.Deleted)
	assert.Equal(t, []string{"999"}, body.Failed)
	assert.Equal(t, 1, stub.Count(entity.Member))

	reqs := stub.RequestsFor(entity.Member, stubserver.OpBulkDelete)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"42", "43", "999"}, reqs[0].IDs)
}

func TestServer_SubmitValidation(t *testing.T) {
	t.Parallel()
	_, ts := newStub(t)

	resp, err := http.PostForm(ts.URL+"/ajax/members/create/", url.Values{"name": {"  "}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Errors  string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Errors, `"name"`)
}

func TestServer_SubmitCreateAndUpdate(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	resp, err := http.PostForm(ts.URL+"/ajax/cells/update/9/", url.Values{"name": {"Cell South"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec, ok := stub.Record(entity.Cell, "9")
	require.True(t, ok)
	assert.Equal(t, "Cell South", rec.Name)

	before := stub.Count(entity.Cell)
	resp, err = http.PostForm(ts.URL+"/ajax/cells/create/", url.Values{"name": {"Cell East"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, before+1, stub.Count(entity.Cell))
}

func TestServer_Failures(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	stub.Fail(entity.Member, stubserver.OpDetail, stubserver.FailLoginPage)
	resp, err := http.Get(ts.URL + "/ajax/members/42/")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(raw), "<!DOCTYPE html>"))

	stub.Fail(entity.Member, stubserver.OpDetail, stubserver.FailStatus)
	resp, err = http.Get(ts.URL + "/ajax/members/42/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	stub.Recover(entity.Member, stubserver.OpDetail)
	resp, err = http.Get(ts.URL + "/ajax/members/42/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Hold(t *testing.T) {
	t.Parallel()
	stub, ts := newStub(t)

	release := stub.Hold(entity.Member, stubserver.OpDetail)
	done := make(chan int, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/ajax/members/42/")
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		return len(stub.RequestsFor(entity.Member, stubserver.OpDetail)) == 1
	}, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("held request completed early")
	default:
	}
	release()
	assert.Equal(t, http.StatusOK, <-done)
}

func TestServer_SearchAndStats(t *testing.T) {
	t.Parallel()
	_, ts := newStub(t)

	var results map[string][]map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/ajax/search/?q=doe", &results))
	require.Len(t, results["members"], 1)
	assert.Equal(t, "Jane Doe", results["members"][0]["name"])
	require.Len(t, results["families"], 1)

	var stats map[string]int
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/ajax/quick-stats/", &stats))
	assert.Equal(t, 3, stats["total_members"])
	assert.Equal(t, 2, stats["active_members"])
	assert.Equal(t, 1, stats["new_members_today"])
}

func TestServer_ListPage(t *testing.T) {
	t.Parallel()
	_, ts := newStub(t)

	resp, err := http.Get(ts.URL + "/members/")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	html := string(raw)

	assert.Contains(t, html, `id="addMemberBtn"`)
	assert.Contains(t, html, `id="bulkDelete"`)
	assert.Contains(t, html, `class="btn btn-sm delete-member" data-member-id="42" data-member-name="Jane Doe"`)
	assert.Contains(t, html, `id="`+entity.ContainerID+`"`)

	resp, err = http.Get(ts.URL + "/assemblies/")
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NotContains(t, string(raw), `id="bulkDelete"`)
}
