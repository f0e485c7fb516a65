package dashboard_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/flockdesk/internal/stubserver"
	"github.com/iota-uz/flockdesk/modules/dashboard"
	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/services"
	"github.com/iota-uz/flockdesk/pkg/configuration"
	"github.com/iota-uz/flockdesk/pkg/logging"
)

type harness struct {
	t     *testing.T
	stub  *stubserver.Server
	m     *dashboard.Module
	clock *clockwork.FakeClock
}

func newHarness(t *testing.T, fallback string) *harness {
	t.Helper()
	return newHarnessWith(t, func(opts *dashboard.ModuleOptions) {
		opts.Fallback = fallback
		opts.ReloadDelay = time.Second
		opts.ToastDelay = 5 * time.Second
	})
}

// newHarnessWith builds the module from options holding only the logger,
// the backend and a fake clock, then lets configure adjust them.
func newHarnessWith(t *testing.T, configure func(*dashboard.ModuleOptions)) *harness {
	t.Helper()
	stub := stubserver.NewSeeded(logging.Discard())
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	client, err := ajax.NewClient(ajax.Options{BaseURL: ts.URL, Logger: logging.Discard()})
	require.NoError(t, err)
	clock := clockwork.NewFakeClock()
	opts := &dashboard.ModuleOptions{
		Logger:  logging.Discard(),
		Backend: client,
		Clock:   clock,
	}
	if configure != nil {
		configure(opts)
	}
	m, err := dashboard.NewModule(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		m.Close()
		cancel()
	})
	return &harness{t: t, stub: stub, m: m, clock: clock}
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) open(path string) {
	h.t.Helper()
	require.NoError(h.t, h.m.Open(h.ctx(), path))
}

func (h *harness) click(selector string) {
	h.t.Helper()
	require.NoError(h.t, h.m.Click(h.ctx(), selector))
}

func (h *harness) settle() {
	h.t.Helper()
	require.NoError(h.t, h.m.Settle(h.ctx()))
}

func (h *harness) shown(modalID string) bool {
	return h.m.Runtime().Modals.IsShown(modalID)
}

func (h *harness) toastText() string {
	return h.m.Page().Text(".toast .toast-body")
}

func (h *harness) pageLoads(kind entity.Kind) int {
	return len(h.stub.RequestsFor(kind, stubserver.OpPage))
}

// ajaxRequests returns every request except page loads.
func (h *harness) ajaxRequests() []stubserver.Request {
	var out []stubserver.Request
	for _, r := range h.stub.Requests() {
		if r.Op != stubserver.OpPage {
			out = append(out, r)
		}
	}
	return out
}

var seededIDs = map[entity.Kind]string{
	entity.Member:   "42",
	entity.Family:   "7",
	entity.Unit:     "3",
	entity.Cell:     "9",
	entity.Assembly: "1",
}

func triggerSelector(verb entity.Verb, kind entity.Kind, id string) string {
	return fmt.Sprintf(`.%s[%s="%s"]`, entity.TriggerClass(verb, kind), entity.IDAttr(kind), id)
}

func TestDelete_ConfirmThenDeleteThenReload(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click(`.delete-member[data-member-id="42"]`)
	require.True(t, h.shown(entity.DeleteConfirmationModalID))
	assert.Contains(t, h.m.Page().Text("#"+entity.DeleteConfirmationModalID), "Are you sure you want to delete Jane Doe?")
	assert.Equal(t, services.DeleteConfirmationShown, h.m.Deletes().State())
	assert.Empty(t, h.stub.RequestsFor(entity.Member, stubserver.OpDelete))

	h.click("#" + entity.ConfirmDeleteButtonID)
	h.settle()

	deletes := h.stub.RequestsFor(entity.Member, stubserver.OpDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, "POST", deletes[0].Method)
	assert.Equal(t, "/ajax/members/delete/42/", deletes[0].Path)
	assert.Equal(t, "XMLHttpRequest", deletes[0].Header.Get("X-Requested-With"))

	assert.False(t, h.shown(entity.DeleteConfirmationModalID))
	assert.Equal(t, 1, h.m.Page().Count(".toast"))
	assert.True(t, h.m.Page().HasClass(".toast", "bg-success"))
	assert.Contains(t, h.toastText(), "deleted successfully")
	assert.True(t, h.m.Runtime().Reload.Pending())

	h.clock.Advance(999 * time.Millisecond)
	assert.Never(t, func() bool { return h.pageLoads(entity.Member) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.pageLoads(entity.Member) == 2 }, 2*time.Second, 5*time.Millisecond)
	h.settle()
	assert.False(t, h.m.Page().Exists("#row-42"))
	assert.True(t, h.m.Page().Exists("#row-43"))
}

func TestDelete_RejectedIsAFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")
	h.stub.Fail(entity.Member, stubserver.OpDelete, stubserver.FailRejected)

	h.click(`.delete-member[data-member-id="42"]`)
	h.click("#" + entity.ConfirmDeleteButtonID)
	h.settle()

	assert.Equal(t, "Failed to delete. Please try again.", h.toastText())
	assert.True(t, h.m.Page().HasClass(".toast", "bg-danger"))
	assert.False(t, h.m.Runtime().Reload.Pending())
	assert.Equal(t, services.DeleteIdle, h.m.Deletes().State())
	_, found := h.stub.Record(entity.Member, "42")
	assert.True(t, found)
}

func TestDelete_DismissCancelsConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click(`.delete-member[data-member-id="43"]`)
	h.click("#" + entity.DeleteConfirmationModalID + ` .btn-secondary[data-bs-dismiss="modal"]`)
	assert.Equal(t, services.DeleteIdle, h.m.Deletes().State())

	err := h.m.Click(h.ctx(), "#"+entity.ConfirmDeleteButtonID)
	require.ErrorIs(t, err, services.ErrNoPendingDeletion)
	h.settle()
	assert.Empty(t, h.stub.RequestsFor(entity.Member, stubserver.OpDelete))
}

func TestDelete_CloseCancelsPendingReload(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click(`.delete-member[data-member-id="42"]`)
	h.click("#" + entity.ConfirmDeleteButtonID)
	h.settle()
	require.True(t, h.m.Runtime().Reload.Pending())

	h.m.Close()
	h.clock.Advance(2 * time.Second)
	assert.Never(t, func() bool { return h.pageLoads(entity.Member) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBulkDelete_NothingChecked(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click("#" + entity.BulkDeleteButtonID)
	h.settle()
	assert.False(t, h.m.Page().Exists("#"+entity.BulkDeleteConfirmationModalID))
	assert.Empty(t, h.stub.RequestsFor(entity.Member, stubserver.OpBulkDelete))
}

func TestBulkDelete_AllSucceed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	_, err := h.m.Check(h.ctx(), `.member-checkbox[value="42"]`, true)
	require.NoError(t, err)
	_, err = h.m.Check(h.ctx(), `.member-checkbox[value="44"]`, true)
	require.NoError(t, err)

	h.click("#" + entity.BulkDeleteButtonID)
	require.True(t, h.shown(entity.BulkDeleteConfirmationModalID))
	assert.Contains(t, h.m.Page().Text("#"+entity.BulkDeleteConfirmationModalID), "Are you sure you want to delete 2 selected members?")
	assert.Equal(t, []string{"42", "44"}, h.m.Deletes().PendingIDs())

	h.click("#" + entity.ConfirmBulkDeleteButtonID)
	h.settle()

	reqs := h.stub.RequestsFor(entity.Member, stubserver.OpBulkDelete)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"42", "44"}, reqs[0].IDs)
	assert.True(t, h.m.Page().HasClass(".toast", "bg-success"))
	assert.True(t, h.m.Runtime().Reload.Pending())
	assert.Equal(t, 1, h.stub.Count(entity.Member))
}

func TestBulkDelete_PartialFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")
	h.stub.Remove(entity.Member, "43")

	_, err := h.m.Check(h.ctx(), `.member-checkbox`, true)
	require.NoError(t, err)
	h.click("#" + entity.BulkDeleteButtonID)
	h.click("#" + entity.ConfirmBulkDeleteButtonID)
	h.settle()

	assert.True(t, h.m.Page().HasClass(".toast", "bg-warning"))
	assert.True(t, h.m.Runtime().Reload.Pending())
}

func TestBulkDelete_AllFailed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")
	for _, id := range []string{"42", "43", "44"} {
		h.stub.Remove(entity.Member, id)
	}

	_, err := h.m.Check(h.ctx(), `.member-checkbox`, true)
	require.NoError(t, err)
	h.click("#" + entity.BulkDeleteButtonID)
	h.click("#" + entity.ConfirmBulkDeleteButtonID)
	h.settle()

	assert.Equal(t, "Failed to delete. Please try again.", h.toastText())
	assert.False(t, h.m.Runtime().Reload.Pending())
}

func TestDetails_Loaded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click(`.view-member[data-member-id="42"]`)
	h.settle()

	require.True(t, h.shown("memberDetailModal"))
	assert.Equal(t, "jane@example.com", h.m.Page().Text("#memberDetailModal .entity-email"))
	reqs := h.stub.RequestsFor(entity.Member, stubserver.OpDetail)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/ajax/members/42/", reqs[0].Path)
}

func TestDetails_LegacyFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t, configuration.FallbackLegacy)

	h.open("/members/")
	h.stub.Fail(entity.Member, stubserver.OpDetail, stubserver.FailStatus)
	h.click(`.view-member[data-member-id="42"]`)
	h.settle()
	assert.False(t, h.m.Page().Exists("#memberDetailModal"))
	assert.Equal(t, "Failed to load member details.", h.toastText())

	h.open("/cells/")
	h.stub.Fail(entity.Cell, stubserver.OpDetail, stubserver.FailLoginPage)
	h.click(`.view-cell[data-cell-id="9"]`)
	h.settle()
	require.True(t, h.shown("cellDetailModal"))
	assert.Contains(t, h.m.Page().Text("#cellDetailModal"), "Loading cell details...")
	assert.Equal(t, 0, h.m.Page().Count(".toast"))
}

func TestDetails_ToastFallbackForEveryKind(t *testing.T) {
	t.Parallel()
	h := newHarness(t, configuration.FallbackToast)
	h.open("/assemblies/")
	h.stub.Fail(entity.Assembly, stubserver.OpDetail, stubserver.FailStatus)

	h.click(`.view-assembly[data-assembly-id="1"]`)
	h.settle()
	assert.False(t, h.m.Page().Exists("#assemblyDetailModal"))
	assert.Equal(t, "Failed to load assembly details.", h.toastText())
}

func TestToasts_OnlyOneAndAutoHide(t *testing.T) {
	t.Parallel()
	h := newHarness(t, configuration.FallbackToast)
	h.open("/members/")
	h.stub.Fail(entity.Member, stubserver.OpDetail, stubserver.FailStatus)

	h.click(`.view-member[data-member-id="42"]`)
	h.settle()
	h.click(`.view-member[data-member-id="43"]`)
	h.settle()
	assert.Equal(t, 1, h.m.Page().Count(".toast"))

	h.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool {
		if err := h.m.Settle(h.ctx()); err != nil {
			return false
		}
		return h.m.Page().Count(".toast") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDetails_StaleResponseDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	release := h.stub.Hold(entity.Member, stubserver.OpDetail)
	defer release()
	h.click(`.view-member[data-member-id="42"]`)
	h.click(`.edit-member[data-member-id="43"]`)
	require.Eventually(t, func() bool { return h.shown(entity.FormModalID(entity.Member)) }, 2*time.Second, 5*time.Millisecond)

	release()
	h.settle()
	assert.False(t, h.m.Page().Exists("#memberDetailModal"))
	assert.True(t, h.shown(entity.FormModalID(entity.Member)))
	assert.Equal(t, "43", h.m.Page().Triggers("#memberForm")[0].Attr("data-member-id"))
}

func TestForms_AddShortcutCreates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click("#addMemberBtn")
	h.settle()
	reqs := h.stub.RequestsFor(entity.Member, stubserver.OpForm)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/ajax/members/form/", reqs[0].Path)
	require.True(t, h.shown("memberFormModal"))

	require.NoError(t, h.m.Fill(h.ctx(), `#memberForm [name="name"]`, "Grace Hopper"))
	h.click("#memberSaveBtn")
	h.settle()

	submits := h.stub.RequestsFor(entity.Member, stubserver.OpSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, "/ajax/members/create/", submits[0].Path)
	assert.Equal(t, "Grace Hopper", submits[0].Form.Get("name"))
	assert.Equal(t, "stub", submits[0].Form.Get("csrfmiddlewaretoken"))

	assert.False(t, h.shown("memberFormModal"))
	assert.True(t, h.m.Page().HasClass(".toast", "bg-success"))
	assert.True(t, h.m.Runtime().Reload.Pending())
	assert.Equal(t, 4, h.stub.Count(entity.Member))
}

func TestForms_EmptyListAddButton(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.stub.Remove(entity.Cell, "9")
	h.open("/cells/")

	h.click("#addCellBtnEmpty")
	h.settle()
	require.True(t, h.shown("cellFormModal"))
}

func TestForms_ValidationErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/families/")

	h.click(`.edit-family[data-family-id="7"]`)
	h.settle()
	require.NoError(t, h.m.Submit(h.ctx(), "#familyForm", url.Values{"name": {""}}))
	h.settle()

	submits := h.stub.RequestsFor(entity.Family, stubserver.OpSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, "/ajax/families/update/7/", submits[0].Path)

	assert.True(t, h.shown("familyFormModal"))
	assert.True(t, h.m.Page().HasClass(`#familyForm [name="name"]`, "is-invalid"))
	assert.False(t, h.m.Page().HasClass(`#familyForm [name="email"]`, "is-invalid"))
	assert.Equal(t, "Please correct the errors in the form.", h.toastText())
	assert.False(t, h.m.Runtime().Reload.Pending())
}

func TestForms_ServerFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/units/")
	h.stub.Fail(entity.Unit, stubserver.OpSubmit, stubserver.FailStatus)

	h.click(`.edit-unit[data-unit-id="3"]`)
	h.settle()
	h.click("#unitSaveBtn")
	h.settle()

	assert.Equal(t, "Failed to save unit. Please try again.", h.toastText())
	assert.True(t, h.shown("unitFormModal"))
}

func TestClick_Unroutable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	err := h.m.Click(h.ctx(), "h1")
	require.ErrorIs(t, err, services.ErrUnroutable)
}

func TestNewModule_RequiresBackend(t *testing.T) {
	t.Parallel()
	_, err := dashboard.NewModule(&dashboard.ModuleOptions{})
	require.Error(t, err)
}

func TestDispatch_EveryKindAndVerb(t *testing.T) {
	t.Parallel()
	for _, kind := range entity.Kinds() {
		for _, verb := range entity.ClassVerbs() {
			t.Run(verb.String()+"-"+kind.String(), func(t *testing.T) {
				t.Parallel()
				h := newHarness(t, "")
				h.open(entity.ListPath(kind))
				id := seededIDs[kind]

				h.click(triggerSelector(verb, kind, id))
				h.settle()

				var op stubserver.Op
				var method, path string
				switch verb {
				case entity.View:
					op, method, path = stubserver.OpDetail, "GET", "/ajax/"+kind.Plural()+"/"+id+"/"
				case entity.Edit:
					op, method, path = stubserver.OpForm, "GET", "/ajax/"+kind.Plural()+"/form/"+id+"/"
				case entity.Delete:
					require.True(t, h.shown(entity.DeleteConfirmationModalID))
					require.Empty(t, h.ajaxRequests(), "confirmation must not hit the server")
					h.click("#" + entity.ConfirmDeleteButtonID)
					h.settle()
					op, method, path = stubserver.OpDelete, "POST", "/ajax/"+kind.Plural()+"/delete/"+id+"/"
				}

				reqs := h.ajaxRequests()
				require.Len(t, reqs, 1)
				assert.Equal(t, op, reqs[0].Op)
				assert.Equal(t, kind, reqs[0].Kind)
				assert.Equal(t, method, reqs[0].Method)
				assert.Equal(t, path, reqs[0].Path)
			})
		}
	}
}

func TestDispatch_ClickOnNestedIcon(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.open("/members/")

	h.click(triggerSelector(entity.View, entity.Member, "42") + " i")
	h.settle()
	reqs := h.stub.RequestsFor(entity.Member, stubserver.OpDetail)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/ajax/members/42/", reqs[0].Path)
	assert.True(t, h.shown("memberDetailModal"))

	h.click(triggerSelector(entity.Delete, entity.Member, "43") + " i")
	require.True(t, h.shown(entity.DeleteConfirmationModalID))
	assert.Contains(t, h.m.Page().Text("#"+entity.DeleteConfirmationModalID), "Are you sure you want to delete John Smith?")
}

func TestToasts_CloseButtonRemovesToast(t *testing.T) {
	t.Parallel()
	h := newHarness(t, configuration.FallbackToast)
	h.open("/members/")
	h.stub.Fail(entity.Member, stubserver.OpDetail, stubserver.FailStatus)

	h.click(triggerSelector(entity.View, entity.Member, "42"))
	h.settle()
	require.Equal(t, 1, h.m.Page().Count(".toast"))

	h.click(`.toast [data-bs-dismiss="toast"]`)
	h.settle()
	assert.Equal(t, 0, h.m.Page().Count(".toast"))
	assert.Equal(t, 0, h.m.Runtime().Toasts.Pending())
}

func TestForms_LoadFailure(t *testing.T) {
	t.Parallel()
	for _, f := range []stubserver.Failure{stubserver.FailStatus, stubserver.FailLoginPage, stubserver.FailMissingHTML} {
		h := newHarness(t, "")
		h.open("/units/")
		h.stub.Fail(entity.Unit, stubserver.OpForm, f)

		h.click(triggerSelector(entity.Edit, entity.Unit, "3"))
		h.settle()

		assert.Equal(t, "Failed to load unit form. Please try again.", h.toastText())
		assert.True(t, h.m.Page().HasClass(".toast", "bg-danger"))
		assert.False(t, h.m.Page().Exists("#unitFormModal"))
		assert.Empty(t, h.m.Runtime().Modals.Visible())
	}
}

func TestDetails_LegacyPlaceholderForUnitAndAssembly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, configuration.FallbackLegacy)

	h.open("/units/")
	h.stub.Fail(entity.Unit, stubserver.OpDetail, stubserver.FailStatus)
	h.click(triggerSelector(entity.View, entity.Unit, "3"))
	h.settle()
	require.True(t, h.shown("unitDetailModal"))
	assert.Contains(t, h.m.Page().Text("#unitDetailModal .modal-title"), "Unit Details")
	assert.Contains(t, h.m.Page().Text("#unitDetailModal"), "Loading unit details...")
	assert.False(t, h.m.Page().HasClass("#unitDetailModal .modal-dialog", "modal-lg"))
	assert.Equal(t, 0, h.m.Page().Count(".toast"))

	h.open("/assemblies/")
	h.stub.Fail(entity.Assembly, stubserver.OpDetail, stubserver.FailMissingHTML)
	h.click(triggerSelector(entity.View, entity.Assembly, "1"))
	h.settle()
	require.True(t, h.shown("assemblyDetailModal"))
	assert.Contains(t, h.m.Page().Text("#assemblyDetailModal .modal-title"), "Assembly Details")
	assert.Contains(t, h.m.Page().Text("#assemblyDetailModal"), "Loading assembly details...")
	assert.True(t, h.m.Page().HasClass("#assemblyDetailModal .modal-dialog", "modal-lg"))
	assert.Equal(t, 0, h.m.Page().Count(".toast"))
}

func TestDelete_ZeroOptionsReloadAfterOneSecond(t *testing.T) {
	t.Parallel()
	h := newHarnessWith(t, nil)
	h.open("/members/")

	h.click(triggerSelector(entity.Delete, entity.Member, "42"))
	h.click("#" + entity.ConfirmDeleteButtonID)
	h.settle()

	due, ok := h.m.Runtime().Reload.Due()
	require.True(t, ok)
	assert.Equal(t, time.Second, due.Sub(h.clock.Now()))

	h.clock.Advance(999 * time.Millisecond)
	assert.Never(t, func() bool { return h.pageLoads(entity.Member) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.pageLoads(entity.Member) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDelete_ReloadImmediately(t *testing.T) {
	t.Parallel()
	h := newHarnessWith(t, func(opts *dashboard.ModuleOptions) {
		opts.Clock = nil
		opts.ReloadImmediately = true
	})
	h.open("/members/")

	h.click(triggerSelector(entity.Delete, entity.Member, "42"))
	h.click("#" + entity.ConfirmDeleteButtonID)
	h.settle()

	require.Eventually(t, func() bool { return h.pageLoads(entity.Member) == 2 }, 2*time.Second, 5*time.Millisecond)
}
