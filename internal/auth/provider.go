// Package auth はIdPによる認証と、クライアントごとのサインイン状態を管理するセッションゲートを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// Credential はIdPに渡す認証情報。
// Googleでは認可コード、パスワード認証ではEmailとPasswordを使う。
// ClientIDはWorkspaceが設定し、ローカルプロバイダーが端末ごとのidentityを作るのに使う。
type Credential struct {
	Code     string
	Email    string
	Password string
	ClientID string
}

// IdentityProvider は外部IdPのインターフェース。
// 認証に失敗した場合、または到達できない場合はエラーを返す。
type IdentityProvider interface {
	Authenticate(ctx context.Context, cred Credential) (*model.Identity, error)
}

// ProviderFunc は関数をIdentityProviderとして扱うアダプタ。
type ProviderFunc func(ctx context.Context, cred Credential) (*model.Identity, error)

// Authenticate はf(ctx, cred)を呼び出す。
func (f ProviderFunc) Authenticate(ctx context.Context, cred Credential) (*model.Identity, error) {
	return f(ctx, cred)
}

// ローカルプロバイダーが返すidentity。IDはクライアントごとに異なる。
const (
	LocalIdentityID  = "local-research-user"
	LocalDisplayName = "Research User"
	LocalAvatarRef   = "https://ui-avatars.com/api/?name=Research+User&background=4f46e5&color=fff"
)

// プロバイダー名。AUTH_PROVIDERで指定する。
const (
	ProviderNameLocal  = "local"
	ProviderNameGoogle = "google"
)

// LocalIdentityFor はクライアントIDに対応するローカルidentityのIDを返す。
// 端末ごとにレコードのスナップショットが分かれるよう、クライアントIDを含める。
func LocalIdentityFor(clientID string) string {
	if clientID == "" {
		return LocalIdentityID
	}
	return LocalIdentityID + ":" + clientID
}

// LocalProvider は外部IdPを使わずにサインインさせるプロバイダー。
// 開発環境とデモ用。
type LocalProvider struct{}

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Authenticate は常に成功し、クライアントごとのidentityを返す。
func (p *LocalProvider) Authenticate(ctx context.Context, cred Credential) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &model.Identity{
		ID:          LocalIdentityFor(cred.ClientID),
		DisplayName: LocalDisplayName,
		AvatarRef:   LocalAvatarRef,
	}, nil
}

// GenerateState はOAuthのCSRF対策用のランダムなstate値を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var (
	_ IdentityProvider = (*LocalProvider)(nil)
	_ IdentityProvider = ProviderFunc(nil)
)
