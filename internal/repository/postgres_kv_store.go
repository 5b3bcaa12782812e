package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresKVStore はPostgreSQLのkv_entriesテーブルを使用したKeyValueStore。
// テーブルはdatabase.RunMigrationsで作成する。
type PostgresKVStore struct {
	db *sql.DB
}

// NewPostgresKVStore はPostgresKVStoreを生成する。
func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

// Get は指定キーの値を取得する。見つからない場合はfound=falseを返す。
func (r *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
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
func (r *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (r *PostgresKVStore) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove kv entry: %w", err)
	}
	return nil
}

// Ping はデータベースへの接続を確認する。
func (r *PostgresKVStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// compile-time interface check
var (
	_ KeyValueStore = (*PostgresKVStore)(nil)
	_ Pinger        = (*PostgresKVStore)(nil)
)
