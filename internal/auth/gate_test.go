package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

const testKey = "ux_template_user/client-1"

// failingStore は全操作が失敗するKeyValueStore。
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, &model.PersistenceError{Op: "get", Err: errors.New("down")}
}
func (failingStore) Set(context.Context, string, []byte) error {
	return &model.PersistenceError{Op: "set", Err: errors.New("down")}
}
func (failingStore) Remove(context.Context, string) error {
	return &model.PersistenceError{Op: "remove", Err: errors.New("down")}
}

// blockingProvider はreleaseが閉じられるまで応答を返さないIdentityProvider。
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	result  *model.Identity
}

func newBlockingProvider(id *model.Identity) *blockingProvider {
	return &blockingProvider{started: make(chan struct{}), release: make(chan struct{}), result: id}
}

func (p *blockingProvider) Authenticate(ctx context.Context, _ Credential) (*model.Identity, error) {
	close(p.started)
	<-p.release
	return p.result, nil
}

func newTestGate(store repository.KeyValueStore, provider IdentityProvider) *Gate {
	return NewGate(GateConfig{Store: store, Provider: provider, Key: testKey})
}

func storeIdentity(t *testing.T, s repository.KeyValueStore, id model.Identity) {
	t.Helper()
	data, _ := json.Marshal(id)
	if err := s.Set(context.Background(), testKey, data); err != nil {
		t.Fatalf("identity の保存に失敗: %v", err)
	}
}

func TestGate_StartsLoading(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), NewLocalProvider())

	if got := g.State().Status; got != model.SessionLoading {
		t.Errorf("初期状態 = %q, want %q", got, model.SessionLoading)
	}
	select {
	case <-g.Ready():
		t.Error("Initialize 前に Ready が閉じられている")
	default:
	}
}

func TestGate_Initialize_NoStoredIdentity(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), NewLocalProvider())

	state := g.Initialize(context.Background())

	if state.Status != model.SessionSignedOut || state.Identity != nil {
		t.Errorf("Initialize() = %+v, want SignedOut", state)
	}
	select {
	case <-g.Ready():
	default:
		t.Error("Initialize 後に Ready が閉じられていない")
	}
}

func TestGate_Initialize_StoredIdentity(t *testing.T) {
	store := repository.NewMemoryStore()
	storeIdentity(t, store, model.Identity{ID: "u1"})
	g := newTestGate(store, NewLocalProvider())

	state := g.Initialize(context.Background())

	if !state.SignedIn() || state.Identity.ID != "u1" {
		t.Errorf("Initialize() = %+v, want SignedIn(u1)", state)
	}
}

func TestGate_Initialize_CorruptIdentityIsSignedOut(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Set(context.Background(), testKey, []byte("{not json"))
	g := newTestGate(store, NewLocalProvider())

	if state := g.Initialize(context.Background()); state.Status != model.SessionSignedOut {
		t.Errorf("破損したidentityで Initialize() = %+v, want SignedOut", state)
	}
}

func TestGate_Initialize_PersistenceFailureIsSignedOut(t *testing.T) {
	g := newTestGate(failingStore{}, NewLocalProvider())

	state := g.Initialize(context.Background())

	if state.Status != model.SessionSignedOut {
		t.Errorf("永続化障害時の Initialize() = %+v, want SignedOut", state)
	}
}

func TestGate_Initialize_OnlyFirstCallTakesEffect(t *testing.T) {
	store := repository.NewMemoryStore()
	g := newTestGate(store, NewLocalProvider())
	g.Initialize(context.Background())

	storeIdentity(t, store, model.Identity{ID: "late"})
	state := g.Initialize(context.Background())

	if state.Status != model.SessionSignedOut {
		t.Errorf("2回目の Initialize() = %+v, want SignedOut のまま", state)
	}
}

func TestGate_SignIn_RejectedWhileLoading(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), NewLocalProvider())

	_, err := g.SignIn(context.Background(), Credential{})

	if !errors.Is(err, model.ErrSessionLoading) {
		t.Errorf("Loading中の SignIn は ErrSessionLoading を返すべき: %v", err)
	}
}

func TestGate_SignIn_PersistsIdentity(t *testing.T) {
	store := repository.NewMemoryStore()
	g := newTestGate(store, NewLocalProvider())
	g.Initialize(context.Background())

	id, err := g.SignIn(context.Background(), Credential{})
	if err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}

	if id.ID != LocalIdentityID || id.DisplayName != LocalDisplayName {
		t.Errorf("identity = %+v", id)
	}
	if !g.State().SignedIn() {
		t.Errorf("SignIn 後の状態 = %+v", g.State())
	}
	data, found, _ := store.Get(context.Background(), testKey)
	if !found {
		t.Fatal("identity が保存されていない")
	}
	var saved model.Identity
	if err := json.Unmarshal(data, &saved); err != nil || saved.ID != LocalIdentityID {
		t.Errorf("保存された identity が不正: %s", data)
	}
}

func TestGate_SignIn_AuthFailureLeavesSignedOut(t *testing.T) {
	providerErr := errors.New("idp unreachable")
	provider := ProviderFunc(func(context.Context, Credential) (*model.Identity, error) {
		return nil, providerErr
	})
	store := repository.NewMemoryStore()
	g := newTestGate(store, provider)
	g.Initialize(context.Background())

	_, err := g.SignIn(context.Background(), Credential{})

	if !errors.Is(err, model.ErrAuthFailure) {
		t.Errorf("errors.Is(err, ErrAuthFailure) = false, err = %v", err)
	}
	if !errors.Is(err, providerErr) {
		t.Errorf("元のエラーを保持していない: %v", err)
	}
	if g.State().Status != model.SessionSignedOut {
		t.Errorf("認証失敗後の状態 = %+v, want SignedOut", g.State())
	}
	if store.Len() != 0 {
		t.Error("認証失敗時に identity が保存された")
	}
}

func TestGate_SignIn_NilIdentityIsAuthFailure(t *testing.T) {
	provider := ProviderFunc(func(context.Context, Credential) (*model.Identity, error) {
		return nil, nil
	})
	g := newTestGate(repository.NewMemoryStore(), provider)
	g.Initialize(context.Background())

	if _, err := g.SignIn(context.Background(), Credential{}); !errors.Is(err, model.ErrAuthFailure) {
		t.Errorf("identity なしの応答は ErrAuthFailure であるべき: %v", err)
	}
}

func TestGate_SignIn_PersistenceFailureStillSignsIn(t *testing.T) {
	g := newTestGate(failingStore{}, NewLocalProvider())
	g.Initialize(context.Background())

	if _, err := g.SignIn(context.Background(), Credential{}); err != nil {
		t.Fatalf("永続化障害でも SignIn は成功するべき: %v", err)
	}
	if !g.State().SignedIn() {
		t.Errorf("状態 = %+v, want SignedIn", g.State())
	}
	if state := g.SignOut(context.Background()); state.Status != model.SessionSignedOut {
		t.Errorf("永続化障害でも SignOut は成功するべき: %+v", state)
	}
}

func TestGate_SignOut_RemovesIdentity(t *testing.T) {
	store := repository.NewMemoryStore()
	storeIdentity(t, store, model.Identity{ID: "u1"})
	g := newTestGate(store, NewLocalProvider())
	g.Initialize(context.Background())

	state := g.SignOut(context.Background())

	if state.Status != model.SessionSignedOut || g.State().Identity != nil {
		t.Errorf("SignOut() = %+v", state)
	}
	if _, found, _ := store.Get(context.Background(), testKey); found {
		t.Error("SignOut 後も identity が残っている")
	}
}

func TestGate_SignOutBeforeProviderResolves_EndsSignedOut(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := newBlockingProvider(&model.Identity{ID: "u1", DisplayName: "Test"})
	g := newTestGate(store, provider)
	g.Initialize(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := g.SignIn(context.Background(), Credential{})
		errCh <- err
	}()

	<-provider.started
	g.SignOut(context.Background())
	close(provider.release)

	select {
	case err := <-errCh:
		if !errors.Is(err, model.ErrSignInSuperseded) {
			t.Errorf("破棄されたサインインは ErrSignInSuperseded を返すべき: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SignIn が完了しない")
	}

	if g.State().Status != model.SessionSignedOut {
		t.Errorf("最終状態 = %+v, want SignedOut", g.State())
	}
	if _, found, _ := store.Get(context.Background(), testKey); found {
		t.Error("破棄されたサインインの identity が保存された")
	}
}

func TestGate_SignOutWhileLoading_DiscardsInitialization(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store := &slowGetStore{KeyValueStore: repository.NewMemoryStore(), started: started, release: release}
	storeIdentity(t, store.KeyValueStore, model.Identity{ID: "u1"})
	g := newTestGate(store, NewLocalProvider())

	done := make(chan model.SessionState, 1)
	go func() { done <- g.Initialize(context.Background()) }()

	<-started
	g.SignOut(context.Background())
	close(release)

	<-done
	if g.State().Status != model.SessionSignedOut {
		t.Errorf("読み込み中にサインアウトした後の状態 = %+v, want SignedOut", g.State())
	}
}

// slowGetStore はGetをreleaseが閉じられるまで止めるKeyValueStore。
type slowGetStore struct {
	repository.KeyValueStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *slowGetStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.KeyValueStore.Get(ctx, key)
}

func TestGate_WaitReady(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), NewLocalProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.WaitReady(ctx); !errors.Is(err, model.ErrSessionLoading) {
		t.Errorf("Initialize 前の WaitReady は ErrSessionLoading を返すべき: %v", err)
	}

	g.Initialize(context.Background())
	state, err := g.WaitReady(context.Background())
	if err != nil || state.Status != model.SessionSignedOut {
		t.Errorf("WaitReady() = %+v, %v", state, err)
	}
}

func TestGate_ObserverReceivesTransitionsInOrder(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), NewLocalProvider())
	var got []model.SessionStatus
	g.Observe(func(from, to model.SessionState) {
		got = append(got, to.Status)
	})

	g.Initialize(context.Background())
	if _, err := g.SignIn(context.Background(), Credential{}); err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}
	g.SignOut(context.Background())
	g.SignOut(context.Background())

	want := []model.SessionStatus{model.SessionSignedOut, model.SessionSignedIn, model.SessionSignedOut}
	if len(got) != len(want) {
		t.Fatalf("遷移 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("遷移[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
