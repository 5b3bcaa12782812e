package handler

import (
	"net/http"
	"slices"
	"testing"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/record"
	"github.com/hitoshi/uxtemplate/internal/workspace"
)

func TestWorkspaceHandler_GetView_DefaultsToOverview(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/view", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/view status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody[viewResponse](t, w)
	if body.View != model.ViewOverview {
		t.Errorf("view = %q, want overview", body.View)
	}
	if len(body.Views) != len(model.Views()) {
		t.Errorf("len(views) = %d, want %d", len(body.Views), len(model.Views()))
	}
}

func TestWorkspaceHandler_SelectView(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodPut, "/api/view", map[string]string{"view": "data"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/view status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if body := decodeBody[viewResponse](t, w); body.View != model.ViewData || body.Label != model.ViewData.Label() {
		t.Errorf("body = %+v, want data", body)
	}

	got := decodeBody[viewResponse](t, env.do(t, http.MethodGet, "/api/view", nil))
	if got.View != model.ViewData {
		t.Errorf("GET /api/view = %q, want data", got.View)
	}
}

func TestWorkspaceHandler_SelectView_SignedOut(t *testing.T) {
	env := newTestEnv(t)
	env.ready(t)

	w := env.do(t, http.MethodPut, "/api/view", map[string]string{"view": "guide"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/view status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestWorkspaceHandler_SelectView_Unknown(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodPut, "/api/view", map[string]string{"view": "settings"})
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeUnknownView)

	if got := decodeBody[viewResponse](t, env.do(t, http.MethodGet, "/api/view", nil)); got.View != model.ViewOverview {
		t.Errorf("未知のタブ指定後のview = %q, want overview", got.View)
	}
}

func TestWorkspaceHandler_Methods(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodGet, "/api/methods", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/methods status = %d, want %d", w.Code, http.StatusOK)
	}
	got := decodeBody[workspace.MethodSelection](t, w)
	if !slices.Equal(got.Selected, record.SeedMethods()) {
		t.Errorf("selected = %v, want %v", got.Selected, record.SeedMethods())
	}
	if !slices.Equal(got.Available, record.AvailableMethods()) {
		t.Errorf("available = %v, want %v", got.Available, record.AvailableMethods())
	}
}

func TestWorkspaceHandler_ToggleMethod(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodPost, "/api/methods/toggle", map[string]string{"method": "Card Sorting"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/methods/toggle status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	got := decodeBody[workspace.MethodSelection](t, w)
	if got.Selected[len(got.Selected)-1] != "Card Sorting" {
		t.Errorf("selected = %v, want Card Sorting appended", got.Selected)
	}

	// もう一度切り替えると外れる
	got = decodeBody[workspace.MethodSelection](t, env.do(t, http.MethodPost, "/api/methods/toggle", map[string]string{"method": "Card Sorting"}))
	if slices.Contains(got.Selected, "Card Sorting") {
		t.Errorf("selected = %v, want Card Sorting removed", got.Selected)
	}
}

func TestWorkspaceHandler_ToggleMethod_Unknown(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodPost, "/api/methods/toggle", map[string]string{"method": "Telepathy"})
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidFieldValue)
}

func TestWorkspaceHandler_Stats(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/stats status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody[map[string]any](t, w)
	for _, key := range []string{"overview", "participants", "plan", "data", "insights", "recommendations"} {
		if _, ok := body[key]; !ok {
			t.Errorf("stats に %q がない", key)
		}
	}
}

func TestWorkspaceHandler_Stats_RequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	env.ready(t)

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}
