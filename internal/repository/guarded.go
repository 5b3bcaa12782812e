package repository

import (
	"context"
	"hash/maphash"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// lockStripes はキー単位のロックの数。キーはハッシュでいずれかに割り当てる。
// クライアントが増えてもロックの数は増えない。
const lockStripes = 256

// PersistenceObserver は永続化操作の結果を受け取る。metrics.Collectorが実装する。
type PersistenceObserver interface {
	ObservePersistence(op string, duration time.Duration, err error)
}

// Guarded は任意のKeyValueStoreを包み、アプリケーションから見た永続化の契約を保証する。
//
//   - 同一キーへの書き込みはキーのハッシュで選んだロックで直列化し、読み取りは書き込みと重ならない
//   - バックエンドのエラーはすべて*model.PersistenceErrorに変換する
//   - 永続化不可の状態は次に成功するまで1回だけWARNログを出す
type Guarded struct {
	inner    KeyValueStore
	logger   *slog.Logger
	observer PersistenceObserver

	seed        maphash.Seed
	locks       [lockStripes]sync.RWMutex
	unavailable atomic.Bool
}

// NewGuarded はinnerを包むGuardedを生成する。observerはnilでもよい。
func NewGuarded(inner KeyValueStore, logger *slog.Logger, observer PersistenceObserver) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{inner: inner, logger: logger, observer: observer, seed: maphash.MakeSeed()}
}

// lockFor はkeyに割り当てられたロックを返す。同じキーには常に同じロックを返す。
func (g *Guarded) lockFor(key string) *sync.RWMutex {
	return &g.locks[maphash.String(g.seed, key)%lockStripes]
}

// Get は指定キーの値を取得する。
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	l := g.lockFor(key)
	l.RLock()
	defer l.RUnlock()

	start := time.Now()
	value, found, err := g.inner.Get(ctx, key)
	return value, found, g.done("get", key, start, err)
}

// Set は指定キーに値を保存する。
func (g *Guarded) Set(ctx context.Context, key string, value []byte) error {
	l := g.lockFor(key)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	return g.done("set", key, start, g.inner.Set(ctx, key, value))
}

// Remove は指定キーを削除する。
func (g *Guarded) Remove(ctx context.Context, key string) error {
	l := g.lockFor(key)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	return g.done("remove", key, start, g.inner.Remove(ctx, key))
}

// Ping は内側のバックエンドがPingerを実装していれば到達性を確認する。
func (g *Guarded) Ping(ctx context.Context) error {
	p, ok := g.inner.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Unavailable は直近の永続化操作が失敗したかどうかを返す。
func (g *Guarded) Unavailable() bool {
	return g.unavailable.Load()
}

func (g *Guarded) done(op, key string, start time.Time, err error) error {
	if g.observer != nil {
		g.observer.ObservePersistence(op, time.Since(start), err)
	}

	if err == nil {
		if g.unavailable.Swap(false) {
			g.logger.Info("永続化ストレージが復旧しました",
				slog.String("op", op),
			)
		}
		return nil
	}

	if !g.unavailable.Swap(true) {
		g.logger.Warn("永続化ストレージが利用できません。メモリ上で動作を継続します",
			slog.String("op", op),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return &model.PersistenceError{Op: op, Key: key, Err: err}
}

// compile-time interface check
var (
	_ KeyValueStore = (*Guarded)(nil)
	_ Pinger        = (*Guarded)(nil)
)
