package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

// TransitionFunc はセッションゲートの状態遷移を受け取る。
// 遷移の順に呼ばれる。TransitionFuncの中からSignInやSignOutを呼んではならない。
type TransitionFunc func(from, to model.SessionState)

// GateConfig はセッションゲートの依存。
type GateConfig struct {
	Store    repository.KeyValueStore
	Provider IdentityProvider
	Key      string // identityの保存キー（repository.UserKey）
	Logger   *slog.Logger
}

// Gate は1クライアントのサインイン状態を管理する状態機械。
//
// 状態は Loading → {SignedOut, SignedIn}、SignedOut ⇄ SignedIn と遷移し、終端状態はない。
// サインアウトは世代番号を進めるため、サインアウトより前に開始したサインインの結果は破棄される。
// identityの書き込みと削除はpersistMuで直列化し、破棄されたサインインが
// 完了済みのサインアウトの後に書き込むことはない。
type Gate struct {
	store    repository.KeyValueStore
	provider IdentityProvider
	key      string
	logger   *slog.Logger

	// persistMu は永続化と状態遷移の通知を直列化する。muより先に取得する。
	persistMu sync.Mutex

	mu          sync.Mutex
	state       model.SessionState
	generation  uint64
	initStarted bool
	resolved    bool
	ready       chan struct{}
	observers   []TransitionFunc
}

// NewGate はLoading状態のGateを生成する。
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:    cfg.Store,
		provider: cfg.Provider,
		key:      cfg.Key,
		logger:   logger,
		state:    model.SessionState{Status: model.SessionLoading},
		ready:    make(chan struct{}),
	}
}

// Observe は状態遷移の通知先を登録する。Initializeより前に呼ぶこと。
func (g *Gate) Observe(fn TransitionFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// State は現在の状態を返す。
func (g *Gate) State() model.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready はLoadingが解消されたときに閉じられるチャネルを返す。
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// WaitReady はLoadingが解消されるまで待ち、その時点の状態を返す。
// ctxが先に終了した場合はErrSessionLoadingを返す。
func (g *Gate) WaitReady(ctx context.Context) (model.SessionState, error) {
	select {
	case <-g.ready:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), fmt.Errorf("%w: %v", model.ErrSessionLoading, ctx.Err())
	}
}

// Initialize は保存済みのidentityを1回だけ読み込み、Loadingを解消する。
// 保存済みidentityがあればSignedIn、なければSignedOutになる。
// 永続化層の障害はSignedOutとして扱う。
// 2回目以降の呼び出しや並行した呼び出しはストレージに触れず、現在の状態を返す。
func (g *Gate) Initialize(ctx context.Context) model.SessionState {
	g.mu.Lock()
	if g.initStarted || g.resolved {
		state := g.state
		g.mu.Unlock()
		return state
	}
	g.initStarted = true
	gen := g.generation
	g.mu.Unlock()

	next := model.SessionState{Status: model.SessionSignedOut}
	if identity, err := g.loadIdentity(ctx); err != nil {
		g.logger.Warn("保存済みidentityを読み込めませんでした。サインアウト状態で開始します",
			slog.String("key", g.key),
			slog.String("error", err.Error()),
		)
	} else if identity != nil {
		next = model.SessionState{Status: model.SessionSignedIn, Identity: identity}
	}

	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	g.mu.Lock()
	if gen != g.generation || g.resolved {
		// 読み込み中にサインアウトされた
		state := g.state
		g.mu.Unlock()
		return state
	}
	from := g.state
	g.state = next
	g.settleLocked()
	observers := g.observers
	g.mu.Unlock()

	notify(observers, from, next)
	return next
}

func (g *Gate) loadIdentity(ctx context.Context) (*model.Identity, error) {
	data, found, err := g.store.Get(ctx, g.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode stored identity: %w", err)
	}
	if identity.ID == "" {
		return nil, nil
	}
	return &identity, nil
}

// SignIn はIdPで認証し、成功すればSignedInに遷移してidentityを保存する。
//
// Loading中はErrSessionLoadingを返す。IdPが失敗した場合はErrAuthFailureを返し、状態は変わらない。
// IdPの応答を待つ間にSignOutされた場合、結果は破棄されErrSignInSupersededを返す。
// identityの保存に失敗してもサインインは成功として扱う。
func (g *Gate) SignIn(ctx context.Context, cred Credential) (*model.Identity, error) {
	g.mu.Lock()
	if g.state.Status == model.SessionLoading {
		g.mu.Unlock()
		return nil, model.ErrSessionLoading
	}
	g.generation++
	gen := g.generation
	g.mu.Unlock()

	identity, err := g.provider.Authenticate(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuthFailure, err)
	}
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: provider returned no identity", model.ErrAuthFailure)
	}

	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		return nil, model.ErrSignInSuperseded
	}
	from := g.state
	to := model.SessionState{Status: model.SessionSignedIn, Identity: identity}
	g.state = to
	observers := g.observers
	g.mu.Unlock()

	notify(observers, from, to)

	data, err := json.Marshal(identity)
	if err == nil {
		err = g.store.Set(ctx, g.key, data)
	}
	if err != nil {
		g.reportPersistence("set", err)
	}
	return identity, nil
}

// SignOut はidentityを破棄してSignedOutに遷移し、保存済みidentityを削除する。
// 失敗することはない。進行中のサインインの結果は破棄される。
func (g *Gate) SignOut(ctx context.Context) model.SessionState {
	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	g.mu.Lock()
	g.generation++
	from := g.state
	to := model.SessionState{Status: model.SessionSignedOut}
	g.state = to
	g.settleLocked()
	observers := g.observers
	g.mu.Unlock()

	if from.Status != to.Status {
		notify(observers, from, to)
	}

	if err := g.store.Remove(ctx, g.key); err != nil {
		g.reportPersistence("remove", err)
	}
	return to
}

// settleLocked はLoadingの解消を記録する。g.muを保持して呼ぶこと。
func (g *Gate) settleLocked() {
	if g.resolved {
		return
	}
	g.resolved = true
	close(g.ready)
}

// reportPersistence は永続化の失敗を記録する。
// 利用者への通知はrepository.Guardedが1回だけ行うため、ここではDEBUGに留める。
func (g *Gate) reportPersistence(op string, err error) {
	level := slog.LevelDebug
	if !errors.Is(err, model.ErrPersistenceUnavailable) {
		level = slog.LevelWarn
	}
	g.logger.Log(context.Background(), level, "identityの永続化に失敗しました",
		slog.String("op", op),
		slog.String("key", g.key),
		slog.String("error", err.Error()),
	)
}

func notify(observers []TransitionFunc, from, to model.SessionState) {
	for _, fn := range observers {
		fn(from, to)
	}
}
