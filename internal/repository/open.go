package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/hitoshi/uxtemplate/internal/database"
)

// 永続化バックエンドのドライバ名。STORAGE_DRIVERで指定する。
const (
	DriverMemory    = "memory"
	DriverFile      = "file"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverS3        = "s3"
	DriverFirestore = "firestore"
)

// OpenOptions はバックエンドの生成に必要な設定。使用しないドライバの項目は無視される。
type OpenOptions struct {
	Driver              string
	DatabaseURL         string
	SQLitePath          string
	FileDir             string
	S3                  S3Config
	FirestoreProjectID  string
	FirestoreCollection string

	// RetryAttempts はリモートバックエンド（postgres/s3/firestore）への操作の試行回数。
	// 0の場合はDefaultRetryAttemptsを使う。
	RetryAttempts int
}

func (o OpenOptions) retrying(inner KeyValueStore) KeyValueStore {
	attempts := o.RetryAttempts
	if attempts == 0 {
		attempts = DefaultRetryAttempts
	}
	return NewRetrying(inner, attempts)
}

// Open はドライバ名に応じたKeyValueStoreを生成する。
// ネットワーク越しのバックエンドは一時的な失敗を再試行するRetryingで包む。
// 戻り値のio.Closerはバックエンドが保持する接続を閉じる。閉じるものがない場合も非nil。
func Open(ctx context.Context, opts OpenOptions) (KeyValueStore, io.Closer, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nopCloser{}, nil

	case DriverFile:
		s, err := NewFileStore(opts.FileDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case DriverPostgres:
		db, err := database.Open(opts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return opts.retrying(NewPostgresKVStore(db)), db, nil

	case DriverSQLite:
		db, err := database.OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteKVStore(db), db, nil

	case DriverS3:
		s, err := NewS3Store(ctx, opts.S3)
		if err != nil {
			return nil, nil, err
		}
		return opts.retrying(s), nopCloser{}, nil

	case DriverFirestore:
		s, err := NewFirestoreStore(ctx, opts.FirestoreProjectID, opts.FirestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return opts.retrying(s), s, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %q", opts.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// compile-time interface check
var _ io.Closer = (*FirestoreStore)(nil)
