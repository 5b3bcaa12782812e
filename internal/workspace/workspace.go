// Package workspace はクライアントごとの作業状態（セッションゲート、表示中のタブ、
// レコードストア、調査手法の選択）をまとめて管理する。
//
// Workspaceはクライアント単位で明示的に生成され、Managerが保持する。
// レコードストアはタブを最初に表示したときに生成され、サインアウトで破棄される。
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/uxtemplate/internal/auth"
	"github.com/hitoshi/uxtemplate/internal/metrics"
	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/record"
	"github.com/hitoshi/uxtemplate/internal/repository"
	"github.com/hitoshi/uxtemplate/internal/security"
	"github.com/hitoshi/uxtemplate/internal/stats"
)

// レコード変更のメトリクスラベル。
const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update"
	opToggle = "toggle"
)

// Config はWorkspaceの依存。
type Config struct {
	ClientID  string
	Store     repository.KeyValueStore
	Provider  auth.IdentityProvider
	Sanitizer security.TextSanitizer
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger

	// PersistRecords がtrueの場合、レコードをidentityごとのスナップショットとして保存・復元する。
	PersistRecords bool
}

// MethodSelection は調査手法の選択状態。
type MethodSelection struct {
	Selected  []string `json:"selected"`
	Available []string `json:"available"`
}

// Stats は全タブの集計値。
type Stats struct {
	Overview        stats.OverviewStats       `json:"overview"`
	Participants    stats.ParticipantStats    `json:"participants"`
	Plan            stats.PlanStats           `json:"plan"`
	Data            stats.DataStats           `json:"data"`
	Insights        stats.InsightStats        `json:"insights"`
	Recommendations stats.RecommendationStats `json:"recommendations"`
}

// Workspace は1クライアントの作業状態。
type Workspace struct {
	clientID       string
	gate           *auth.Gate
	store          repository.KeyValueStore
	sanitizer      security.TextSanitizer
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	persistRecords bool

	views *ViewSelector

	// mu はレコードストアと調査手法の選択を保護する。
	mu          sync.Mutex
	collections map[model.RecordKind]collection
	methods     []string
	snapshot    *model.Snapshot // 読み込み済みのスナップショット。未知の種別を書き戻すために保持する
	loadedFor   string          // snapshotを読み込んだidentityのID

	lastAccess atomic.Int64
}

// New はLoading状態のWorkspaceを生成する。Initializeを呼ぶまでLoadingのまま。
func New(cfg Config) *Workspace {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := cfg.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}

	w := &Workspace{
		clientID:       cfg.ClientID,
		store:          cfg.Store,
		sanitizer:      sanitizer,
		metrics:        mc,
		logger:         logger.With(slog.String("client_id", cfg.ClientID)),
		persistRecords: cfg.PersistRecords,
		views:          NewViewSelector(),
		collections:    make(map[model.RecordKind]collection),
	}
	w.gate = auth.NewGate(auth.GateConfig{
		Store:    cfg.Store,
		Provider: cfg.Provider,
		Key:      repository.UserKey(cfg.ClientID),
		Logger:   w.logger,
	})
	w.gate.Observe(w.onTransition)
	w.Touch()
	return w
}

// ClientID はクライアントIDを返す。
func (w *Workspace) ClientID() string {
	return w.clientID
}

// Gate はセッションゲートを返す。
func (w *Workspace) Gate() *auth.Gate {
	return w.gate
}

// Touch は最終アクセス時刻を更新する。
func (w *Workspace) Touch() {
	w.lastAccess.Store(time.Now().UnixNano())
}

// LastAccess は最終アクセス時刻を返す。
func (w *Workspace) LastAccess() time.Time {
	return time.Unix(0, w.lastAccess.Load())
}

// Initialize は保存済みidentityを読み込み、Loadingを解消する。
func (w *Workspace) Initialize(ctx context.Context) model.SessionState {
	return w.gate.Initialize(ctx)
}

// State はセッションゲートの現在の状態を返す。
func (w *Workspace) State() model.SessionState {
	return w.gate.State()
}

// SignIn はIdPで認証し、サインイン状態にする。
func (w *Workspace) SignIn(ctx context.Context, cred auth.Credential) (*model.Identity, error) {
	cred.ClientID = w.clientID
	identity, err := w.gate.SignIn(ctx, cred)
	switch {
	case err == nil:
		w.metrics.RecordSignIn(metrics.SignInSuccess)
	case errors.Is(err, model.ErrSignInSuperseded):
		w.metrics.RecordSignIn(metrics.SignInSuperseded)
	default:
		w.metrics.RecordSignIn(metrics.SignInFailure)
	}
	return identity, err
}

// SignOut はサインアウトする。レコードストアはすべて破棄される。
func (w *Workspace) SignOut(ctx context.Context) model.SessionState {
	return w.gate.SignOut(ctx)
}

// onTransition はゲートの状態遷移を受け取る。
// 同じidentityのままサインイン状態が続く場合を除き、レコードを破棄する。
func (w *Workspace) onTransition(from, to model.SessionState) {
	w.metrics.RecordSessionTransition(string(from.Status), string(to.Status))

	if to.SignedIn() && from.SignedIn() && from.Identity.ID == to.Identity.ID {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discardLocked()
}

func (w *Workspace) discardLocked() {
	clear(w.collections)
	w.methods = nil
	w.snapshot = nil
	w.loadedFor = ""
}

// ActiveView は表示中のタブを返す。
func (w *Workspace) ActiveView() model.View {
	return w.views.Active()
}

// SelectView はタブを切り替える。サインイン済みであればタブのレコードストアを準備する。
// レコードの内容は変更しない。
func (w *Workspace) SelectView(ctx context.Context, v model.View) error {
	if err := w.views.Select(v); err != nil {
		return err
	}
	state := w.gate.State()
	if !state.SignedIn() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stillSignedInLocked(state.Identity) {
		return nil
	}
	for _, kind := range v.Kinds() {
		if _, err := w.mountLocked(ctx, state.Identity, kind); err != nil {
			return err
		}
	}
	if v == model.ViewOverview {
		w.mountMethodsLocked(ctx, state.Identity)
	}
	return nil
}

// List は指定種別のレコード列を返す。
func (w *Workspace) List(ctx context.Context, kind model.RecordKind) (any, error) {
	var items any
	err := w.withCollection(ctx, kind, func(_ *model.Identity, c collection) error {
		items = c.items()
		return nil
	})
	return items, err
}

// Add は既定レコードを末尾に追加し、追加したレコードを返す。
func (w *Workspace) Add(ctx context.Context, kind model.RecordKind) (any, error) {
	var added any
	err := w.withCollection(ctx, kind, func(identity *model.Identity, c collection) error {
		added = c.add()
		w.afterMutationLocked(ctx, identity, kind, opAdd)
		return nil
	})
	return added, err
}

// RemoveAt は指定位置のレコードを削除する。
func (w *Workspace) RemoveAt(ctx context.Context, kind model.RecordKind, index int) error {
	return w.withCollection(ctx, kind, func(identity *model.Identity, c collection) error {
		if err := c.removeAt(index); err != nil {
			return err
		}
		w.afterMutationLocked(ctx, identity, kind, opRemove)
		return nil
	})
}

// UpdateField は指定位置のレコードのフィールドを1つ更新し、更新後のレコードを返す。
// 値はプレーンテキスト化してから保存する。
func (w *Workspace) UpdateField(ctx context.Context, kind model.RecordKind, index int, field, value string) (any, error) {
	var updated any
	err := w.withCollection(ctx, kind, func(identity *model.Identity, c collection) error {
		r, err := c.updateField(index, field, w.sanitizer.Sanitize(value))
		if err != nil {
			return err
		}
		updated = r
		w.afterMutationLocked(ctx, identity, kind, opUpdate)
		return nil
	})
	return updated, err
}

// Toggle は完了フラグを反転する。tasks以外はErrNotToggleableを返す。
func (w *Workspace) Toggle(ctx context.Context, kind model.RecordKind, index int) (any, error) {
	var toggled any
	err := w.withCollection(ctx, kind, func(identity *model.Identity, c collection) error {
		r, err := c.toggle(index)
		if err != nil {
			return err
		}
		toggled = r
		w.afterMutationLocked(ctx, identity, kind, opToggle)
		return nil
	})
	return toggled, err
}

// Methods は調査手法の選択状態を返す。
func (w *Workspace) Methods(ctx context.Context) (MethodSelection, error) {
	identity, err := w.requireSignedIn(ctx)
	if err != nil {
		return MethodSelection{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stillSignedInLocked(identity) {
		return MethodSelection{}, model.ErrNotSignedIn
	}
	return w.methodSelectionLocked(ctx, identity), nil
}

// ToggleMethod は調査手法が未選択なら追加し、選択済みなら外す。選択順は保たれる。
// 選択肢にない名前はErrInvalidFieldValueを返す。
func (w *Workspace) ToggleMethod(ctx context.Context, name string) (MethodSelection, error) {
	if !slices.Contains(record.AvailableMethods(), name) {
		return MethodSelection{}, fmt.Errorf("%w: method=%q", model.ErrInvalidFieldValue, name)
	}
	identity, err := w.requireSignedIn(ctx)
	if err != nil {
		return MethodSelection{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stillSignedInLocked(identity) {
		return MethodSelection{}, model.ErrNotSignedIn
	}
	w.mountMethodsLocked(ctx, identity)

	if i := slices.Index(w.methods, name); i >= 0 {
		w.methods = slices.Delete(slices.Clone(w.methods), i, i+1)
	} else {
		w.methods = append(slices.Clone(w.methods), name)
	}
	w.afterMutationLocked(ctx, identity, "methods", opToggle)
	return w.methodSelectionLocked(ctx, identity), nil
}

// Stats は全タブの集計値を現在のレコードから算出する。
func (w *Workspace) Stats(ctx context.Context) (Stats, error) {
	identity, err := w.requireSignedIn(ctx)
	if err != nil {
		return Stats{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stillSignedInLocked(identity) {
		return Stats{}, model.ErrNotSignedIn
	}

	var firstErr error
	items := func(kind model.RecordKind) any {
		c, err := w.mountLocked(ctx, identity, kind)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		return c.items()
	}

	hypotheses, _ := items(model.KindHypotheses).([]model.Statement)
	questions, _ := items(model.KindQuestions).([]model.Statement)
	criteria, _ := items(model.KindCriteria).([]model.Statement)
	participants, _ := items(model.KindParticipants).([]model.Participant)
	sessions, _ := items(model.KindSessions).([]model.ResearchSession)
	tasks, _ := items(model.KindTasks).([]model.Task)
	observations, _ := items(model.KindObservations).([]model.Observation)
	quotes, _ := items(model.KindQuotes).([]model.Quote)
	insights, _ := items(model.KindInsights).([]model.Insight)
	themes, _ := items(model.KindThemes).([]model.Theme)
	recommendations, _ := items(model.KindRecommendations).([]model.Recommendation)
	if firstErr != nil {
		return Stats{}, firstErr
	}
	w.mountMethodsLocked(ctx, identity)

	return Stats{
		Overview:        stats.Overview(hypotheses, questions, w.methods),
		Participants:    stats.Participants(participants, criteria),
		Plan:            stats.Plan(sessions, tasks),
		Data:            stats.Data(observations, quotes),
		Insights:        stats.Insights(insights, themes),
		Recommendations: stats.Recommendations(recommendations),
	}, nil
}

// requireSignedIn はゲートのLoadingが解消されるのを待ち、サインイン済みのidentityを返す。
func (w *Workspace) requireSignedIn(ctx context.Context) (*model.Identity, error) {
	w.Touch()
	state, err := w.gate.WaitReady(ctx)
	if err != nil {
		return nil, err
	}
	if !state.SignedIn() {
		return nil, model.ErrNotSignedIn
	}
	return state.Identity, nil
}

// stillSignedInLocked はロック取得までの間にサインアウトやidentityの切り替えがなかったかを確認する。
func (w *Workspace) stillSignedInLocked(identity *model.Identity) bool {
	state := w.gate.State()
	return state.SignedIn() && state.Identity.ID == identity.ID
}

func (w *Workspace) withCollection(ctx context.Context, kind model.RecordKind, fn func(*model.Identity, collection) error) error {
	identity, err := w.requireSignedIn(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stillSignedInLocked(identity) {
		return model.ErrNotSignedIn
	}
	c, err := w.mountLocked(ctx, identity, kind)
	if err != nil {
		return err
	}
	return fn(identity, c)
}

// mountLocked は種別のcollectionを返す。未生成であれば初期データ、
// または保存済みスナップショットから生成する。
func (w *Workspace) mountLocked(ctx context.Context, identity *model.Identity, kind model.RecordKind) (collection, error) {
	if c, ok := w.collections[kind]; ok {
		return c, nil
	}
	c, err := newCollection(kind)
	if err != nil {
		return nil, err
	}

	if snap := w.loadSnapshotLocked(ctx, identity); snap != nil {
		if raw, ok := snap.Records[string(kind)]; ok {
			if err := c.restore(raw); err != nil {
				w.logger.Warn("保存済みレコードを復元できませんでした。初期データを使用します",
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	w.collections[kind] = c
	return c, nil
}

func (w *Workspace) mountMethodsLocked(ctx context.Context, identity *model.Identity) {
	if w.methods != nil {
		return
	}
	if snap := w.loadSnapshotLocked(ctx, identity); snap != nil && snap.Methods != nil {
		w.methods = slices.Clone(snap.Methods)
		return
	}
	w.methods = record.SeedMethods()
}

func (w *Workspace) methodSelectionLocked(ctx context.Context, identity *model.Identity) MethodSelection {
	w.mountMethodsLocked(ctx, identity)
	return MethodSelection{
		Selected:  slices.Clone(w.methods),
		Available: record.AvailableMethods(),
	}
}

// loadSnapshotLocked はidentityのスナップショットを1回だけ読み込む。
// レコードの永続化が無効な場合、保存済みのものがない場合、読み込みに失敗した場合はnilを返す。
func (w *Workspace) loadSnapshotLocked(ctx context.Context, identity *model.Identity) *model.Snapshot {
	if !w.persistRecords {
		return nil
	}
	if w.loadedFor == identity.ID {
		return w.snapshot
	}
	w.loadedFor = identity.ID
	w.snapshot = nil

	key := repository.DataKey(identity.ID)
	data, found, err := w.store.Get(ctx, key)
	if err != nil {
		w.logger.Debug("スナップショットを読み込めませんでした",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !found {
		return nil
	}
	snap, err := model.DecodeSnapshot(data)
	if err != nil {
		w.logger.Warn("保存済みスナップショットが壊れています。初期データを使用します",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	w.snapshot = snap
	return snap
}

// afterMutationLocked はメトリクスを記録し、有効であればスナップショットを保存する。
// 保存に失敗してもメモリ上の変更は維持する。
func (w *Workspace) afterMutationLocked(ctx context.Context, identity *model.Identity, kind model.RecordKind, op string) {
	w.metrics.RecordRecordMutation(string(kind), op)
	if !w.persistRecords {
		return
	}

	snap := &model.Snapshot{
		Identity: identity,
		Records:  make(map[string]json.RawMessage),
		Methods:  w.methods,
	}
	if w.snapshot != nil {
		for k, raw := range w.snapshot.Records {
			snap.Records[k] = raw
		}
		if snap.Methods == nil {
			snap.Methods = w.snapshot.Methods
		}
	}
	for k, c := range w.collections {
		raw, err := c.encode()
		if err != nil {
			w.logger.Error("レコードをエンコードできませんでした",
				slog.String("kind", string(k)),
				slog.String("error", err.Error()),
			)
			return
		}
		snap.Records[string(k)] = raw
	}

	data, err := snap.Encode()
	if err != nil {
		w.logger.Error("スナップショットをエンコードできませんでした", slog.String("error", err.Error()))
		return
	}
	key := repository.DataKey(identity.ID)
	if err := w.store.Set(ctx, key, data); err != nil {
		w.logger.Debug("スナップショットを保存できませんでした",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	w.snapshot = snap
	w.loadedFor = identity.ID
}
