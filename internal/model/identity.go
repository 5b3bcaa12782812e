package model

// Identity はサインイン済みユーザーの識別情報を表す。
// サインイン成功時に生成され、サインアウト時に破棄される。
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

// SessionStatus はセッションゲートの状態を表す。
type SessionStatus string

const (
	// SessionLoading は保存済みidentityの読み込み中であることを示す。初期状態。
	SessionLoading SessionStatus = "loading"
	// SessionSignedOut は未サインイン状態を示す。
	SessionSignedOut SessionStatus = "signed_out"
	// SessionSignedIn はサインイン済み状態を示す。
	SessionSignedIn SessionStatus = "signed_in"
)

// SessionState はセッションゲートの現在状態のスナップショット。
// IdentityはStatusがSessionSignedInの場合のみ非nilとなる。
type SessionState struct {
	Status   SessionStatus `json:"state"`
	Identity *Identity     `json:"identity,omitempty"`
}

// SignedIn はサインイン済みかどうかを返す。
func (s SessionState) SignedIn() bool {
	return s.Status == SessionSignedIn && s.Identity != nil
}
