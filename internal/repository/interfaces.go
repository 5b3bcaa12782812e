// Package repository はキーと値の永続化インターフェースとそのバックエンド実装を提供する。
package repository

import (
	"context"
)

// KeyValueStore は文字列キーに対してバイト列を保存する永続化インターフェース。
// 値の形式は呼び出し側が決める（identityとスナップショットはJSON）。
type KeyValueStore interface {
	// Get は指定キーの値を取得する。存在しない場合はfound=falseを返し、エラーにはしない。
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set は指定キーに値を保存する。既存の値は置き換える。
	Set(ctx context.Context, key string, value []byte) error

	// Remove は指定キーを削除する。存在しないキーの削除はエラーにしない。
	Remove(ctx context.Context, key string) error
}

// Pinger は到達性を確認できるバックエンドが実装する。ヘルスチェックで使用する。
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	userKeyPrefix    = "ux_template_user/"
	dataKeyPrefix    = "ux_template_data/"
	accountKeyPrefix = "ux_template_account/"
)

// UserKey はクライアントのサインイン済みidentityを保存するキーを返す。
func UserKey(clientID string) string {
	return userKeyPrefix + clientID
}

// DataKey はidentityごとのワークスペーススナップショットを保存するキーを返す。
func DataKey(identityID string) string {
	return dataKeyPrefix + identityID
}

// AccountKey はメールアドレスで登録したアカウントを保存するキーを返す。
// emailは正規化（小文字化）済みであること。
func AccountKey(email string) string {
	return accountKeyPrefix + email
}
