package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteKVStore は単一ファイルのSQLiteデータベースを使用したKeyValueStore。
// テーブルはdatabase.OpenSQLiteで作成する。
type SQLiteKVStore struct {
	db *sql.DB
}

// NewSQLiteKVStore はSQLiteKVStoreを生成する。
func NewSQLiteKVStore(db *sql.DB) *SQLiteKVStore {
	return &SQLiteKVStore{db: db}
}

// Get は指定キーの値を取得する。
func (r *SQLiteKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, true, nil
}

// Set は値をUPSERTする。
func (r *SQLiteKVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		 updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (r *SQLiteKVStore) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove kv entry: %w", err)
	}
	return nil
}

// Ping はデータベースファイルにアクセスできるかを確認する。
func (r *SQLiteKVStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// compile-time interface check
var (
	_ KeyValueStore = (*SQLiteKVStore)(nil)
	_ Pinger        = (*SQLiteKVStore)(nil)
)
