package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/uxtemplate/internal/auth"
	"github.com/hitoshi/uxtemplate/internal/metrics"
	"github.com/hitoshi/uxtemplate/internal/repository"
	"github.com/hitoshi/uxtemplate/internal/security"
)

// DefaultInitTimeout は保存済みidentityの読み込みに許す時間の既定値。
const DefaultInitTimeout = 5 * time.Second

// ManagerConfig はManagerが生成するWorkspaceに共通の依存。
type ManagerConfig struct {
	Store          repository.KeyValueStore
	Provider       auth.IdentityProvider
	Sanitizer      security.TextSanitizer
	Metrics        metrics.MetricsCollector
	Logger         *slog.Logger
	PersistRecords bool
	InitTimeout    time.Duration
}

// Manager はクライアントIDごとのWorkspaceを保持する。
type Manager struct {
	cfg ManagerConfig

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewManager はManagerを生成する。
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = security.NewTextSanitizer()
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	return &Manager{
		cfg:        cfg,
		workspaces: make(map[string]*Workspace),
	}
}

// Get はクライアントIDのWorkspaceを返す。存在しなければ生成し、
// 保存済みidentityの読み込みをバックグラウンドで開始する。
func (m *Manager) Get(clientID string) *Workspace {
	m.mu.Lock()
	w, ok := m.workspaces[clientID]
	if !ok {
		w = New(Config{
			ClientID:       clientID,
			Store:          m.cfg.Store,
			Provider:       m.cfg.Provider,
			Sanitizer:      m.cfg.Sanitizer,
			Metrics:        m.cfg.Metrics,
			Logger:         m.cfg.Logger,
			PersistRecords: m.cfg.PersistRecords,
		})
		m.workspaces[clientID] = w
	}
	n := len(m.workspaces)
	m.mu.Unlock()

	if !ok {
		m.cfg.Metrics.SetActiveWorkspaces(n)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.InitTimeout)
			defer cancel()
			w.Initialize(ctx)
		}()
	}
	w.Touch()
	return w
}

// Len は保持しているWorkspaceの数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// EvictIdle は最終アクセスがnow-ttlより前のWorkspaceを破棄し、破棄した数を返す。
// 保存済みidentityは削除しないため、同じクライアントが戻ればサインイン状態が復元される。
func (m *Manager) EvictIdle(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl)

	m.mu.Lock()
	evicted := 0
	for id, w := range m.workspaces {
		if w.LastAccess().Before(cutoff) {
			delete(m.workspaces, id)
			evicted++
		}
	}
	n := len(m.workspaces)
	m.mu.Unlock()

	if evicted > 0 {
		m.cfg.Metrics.RecordWorkspacesEvicted(evicted)
		m.cfg.Logger.Info("idle workspaces evicted",
			slog.Int("evicted", evicted),
			slog.Int("remaining", n),
		)
	}
	m.cfg.Metrics.SetActiveWorkspaces(n)
	return evicted, nil
}
