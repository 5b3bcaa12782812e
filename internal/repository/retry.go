package repository

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultRetryAttempts はリモートバックエンドへの操作の既定の試行回数（初回を含む）。
	DefaultRetryAttempts = 3
	// initialRetryBackoff は指数バックオフの初回遅延。
	initialRetryBackoff = 50 * time.Millisecond
	// maxRetryBackoff は指数バックオフの最大遅延。
	maxRetryBackoff = 800 * time.Millisecond
)

// CalculateBackoff は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回50ms、2倍ずつ増加、最大800ms。
func CalculateBackoff(retries int) time.Duration {
	delay := initialRetryBackoff
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay > maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}

// Retrying はリモートバックエンドの一時的な失敗を指数バックオフで再試行する。
// コンテキストのキャンセルとタイムアウトは再試行しない。
type Retrying struct {
	inner    KeyValueStore
	attempts int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying はinnerを包むRetryingを生成する。attemptsが1未満の場合は1として扱う。
func NewRetrying(inner KeyValueStore, attempts int) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{inner: inner, attempts: attempts, sleep: sleepContext}
}

// Get は指定キーの値を取得する。
func (r *Retrying) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := r.do(ctx, func() error {
		var err error
		value, found, err = r.inner.Get(ctx, key)
		return err
	})
	return value, found, err
}

// Set は指定キーに値を保存する。
func (r *Retrying) Set(ctx context.Context, key string, value []byte) error {
	return r.do(ctx, func() error {
		return r.inner.Set(ctx, key, value)
	})
}

// Remove は指定キーを削除する。
func (r *Retrying) Remove(ctx context.Context, key string) error {
	return r.do(ctx, func() error {
		return r.inner.Remove(ctx, key)
	})
}

// Ping は内側のバックエンドに委譲する。ヘルスチェックは再試行しない。
func (r *Retrying) Ping(ctx context.Context) error {
	p, ok := r.inner.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func (r *Retrying) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := r.sleep(ctx, CalculateBackoff(attempt-1)); sleepErr != nil {
				return err
			}
		}
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// compile-time interface check
var (
	_ KeyValueStore = (*Retrying)(nil)
	_ Pinger        = (*Retrying)(nil)
)
