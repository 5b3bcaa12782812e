package workspace

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hitoshi/uxtemplate/internal/auth"
	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

func newTestManager(store repository.KeyValueStore) *Manager {
	return NewManager(ManagerConfig{
		Store:    store,
		Provider: fixedProvider("u1", "Test"),
	})
}

func waitSettled(t *testing.T, w *Workspace) model.SessionState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := w.Gate().WaitReady(ctx)
	if err != nil {
		t.Fatalf("Initialize が完了しなかった: %v", err)
	}
	return state
}

func TestManager_GetReturnsSameWorkspace(t *testing.T) {
	m := newTestManager(repository.NewMemoryStore())

	a := m.Get("client-a")
	b := m.Get("client-a")
	c := m.Get("client-b")

	if a != b {
		t.Error("同じクライアントIDに別のWorkspaceが返された")
	}
	if a == c {
		t.Error("異なるクライアントIDに同じWorkspaceが返された")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestManager_InitializesInBackground(t *testing.T) {
	store := repository.NewMemoryStore()
	data, _ := json.Marshal(model.Identity{ID: "u1", DisplayName: "Test"})
	if err := store.Set(context.Background(), repository.UserKey("client-a"), data); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	m := newTestManager(store)

	state := waitSettled(t, m.Get("client-a"))
	if !state.SignedIn() || state.Identity.ID != "u1" {
		t.Errorf("状態 = %+v, want SignedIn(u1)", state)
	}

	state = waitSettled(t, m.Get("client-b"))
	if state.Status != model.SessionSignedOut {
		t.Errorf("保存済みidentityのないクライアントの状態 = %q, want signed_out", state.Status)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := newTestManager(repository.NewMemoryStore())
	old := m.Get("old")
	m.Get("fresh")
	old.lastAccess.Store(time.Now().Add(-time.Hour).UnixNano())

	evicted, err := m.EvictIdle(context.Background(), time.Now(), 30*time.Minute)
	if err != nil {
		t.Fatalf("EvictIdle がエラーを返した: %v", err)
	}
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if m.Get("old") == old {
		t.Error("破棄したWorkspaceが再利用された")
	}
}

func TestManager_EvictedClientRestoresSignIn(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(repository.NewMemoryStore())

	w := m.Get("client-a")
	waitSettled(t, w)
	if _, err := w.SignIn(ctx, auth.Credential{}); err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}

	if _, err := m.EvictIdle(ctx, time.Now().Add(time.Hour), time.Minute); err != nil {
		t.Fatalf("EvictIdle がエラーを返した: %v", err)
	}

	state := waitSettled(t, m.Get("client-a"))
	if !state.SignedIn() {
		t.Errorf("再生成後の状態 = %q, want signed_in", state.Status)
	}
}
