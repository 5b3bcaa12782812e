// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// レコードストア・セッションゲート・永続化層が返すエラー。
// 呼び出し側はerrors.Isで判定する。
var (
	// ErrAuthFailure はIdPが認証を拒否した、または到達できなかったことを示す。
	ErrAuthFailure = errors.New("authentication failed")
	// ErrPersistenceUnavailable は永続化アダプタの呼び出しが失敗したことを示す。
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrIndexOutOfRange はレコードのインデックスが範囲外であることを示す。
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnknownField はレコードのスキーマに存在しないフィールド名であることを示す。
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidFieldValue はフィールドに設定できない値であることを示す。
	ErrInvalidFieldValue = errors.New("invalid field value")
	// ErrUnknownRecordKind は未知のレコード種別であることを示す。
	ErrUnknownRecordKind = errors.New("unknown record kind")
	// ErrNotToggleable は完了フラグを持たないレコード種別への切り替え要求であることを示す。
	ErrNotToggleable = errors.New("record kind is not toggleable")
	// ErrUnknownView は未知のタブ名であることを示す。
	ErrUnknownView = errors.New("unknown view")
	// ErrSessionLoading はセッションゲートの初期化が完了していないことを示す。
	ErrSessionLoading = errors.New("session is loading")
	// ErrNotSignedIn はサインインしていないことを示す。
	ErrNotSignedIn = errors.New("not signed in")
	// ErrSignInSuperseded は後続のサインアウトによりサインイン結果が破棄されたことを示す。
	ErrSignInSuperseded = errors.New("sign-in superseded by a later sign-out")
	// ErrAccountExists は同じメールアドレスのアカウントが登録済みであることを示す。
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidAccount はアカウント登録の入力（メールアドレス・パスワード）が不正であることを示す。
	ErrInvalidAccount = errors.New("invalid account input")
)

// PersistenceError は永続化アダプタの失敗を表す型付きエラー。
// errors.Is(err, ErrPersistenceUnavailable) がtrueになる。
type PersistenceError struct {
	Op  string // get, set, remove
	Key string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is はErrPersistenceUnavailableとの比較でtrueを返す。
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceUnavailable
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, record, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailure       = "AUTH_FAILURE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeSessionLoading    = "SESSION_LOADING"
	ErrCodeSignInSuperseded  = "SIGN_IN_SUPERSEDED"
	ErrCodeIndexOutOfRange   = "INDEX_OUT_OF_RANGE"
	ErrCodeUnknownField      = "UNKNOWN_FIELD"
	ErrCodeInvalidFieldValue = "INVALID_FIELD_VALUE"
	ErrCodeUnknownRecordKind = "UNKNOWN_RECORD_KIND"
	ErrCodeNotToggleable     = "NOT_TOGGLEABLE"
	ErrCodeUnknownView       = "UNKNOWN_VIEW"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid       = "CSRF_TOKEN_INVALID"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeAccountExists     = "ACCOUNT_EXISTS"
	ErrCodeInvalidAccount    = "INVALID_ACCOUNT"
)

// NewAuthFailureError は認証失敗エラーを生成する。再試行可能。
func NewAuthFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailure,
		Message:  "サインインに失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度サインインしてください。",
	}
}

// NewUnauthorizedError は未サインインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "サインインが必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewSessionLoadingError はセッション読み込み中エラーを生成する。
func NewSessionLoadingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLoading,
		Message:  "セッションを読み込んでいます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSignInSupersededError はサインインがサインアウトで取り消された場合のエラーを生成する。
func NewSignInSupersededError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInSuperseded,
		Message:  "サインイン処理中にサインアウトされました。",
		Category: "auth",
		Action:   "必要であれば再度サインインしてください。",
	}
}

// NewIndexOutOfRangeError はレコードのインデックス範囲外エラーを生成する。
func NewIndexOutOfRangeError(kind RecordKind, index int) *APIError {
	return &APIError{
		Code:     ErrCodeIndexOutOfRange,
		Message:  fmt.Sprintf("指定されたレコードが見つかりません: %s[%d]", kind, index),
		Category: "record",
		Action:   "一覧を再読み込みしてから操作してください。",
	}
}

// NewUnknownFieldError は未知のフィールド名エラーを生成する。
func NewUnknownFieldError(kind RecordKind, field string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownField,
		Message:  fmt.Sprintf("%s に %q というフィールドはありません。", kind, field),
		Category: "validation",
		Action:   "フィールド名を確認してください。",
	}
}

// NewInvalidFieldValueError はフィールド値が不正な場合のエラーを生成する。
func NewInvalidFieldValueError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFieldValue,
		Message:  fmt.Sprintf("フィールド %q に設定できない値です。", field),
		Category: "validation",
		Action:   "Low、Medium、High のいずれか、または正しい形式の値を指定してください。",
	}
}

// NewUnknownRecordKindError は未知のレコード種別エラーを生成する。
func NewUnknownRecordKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownRecordKind,
		Message:  fmt.Sprintf("未知のレコード種別です: %s", kind),
		Category: "validation",
		Action:   "レコード種別を確認してください。",
	}
}

// NewNotToggleableError は完了フラグを持たない種別への切り替えエラーを生成する。
func NewNotToggleableError(kind RecordKind) *APIError {
	return &APIError{
		Code:     ErrCodeNotToggleable,
		Message:  fmt.Sprintf("%s は完了状態を切り替えられません。", kind),
		Category: "validation",
		Action:   "完了状態の切り替えは tasks でのみ利用できます。",
	}
}

// NewUnknownViewError は未知のタブ名エラーを生成する。
func NewUnknownViewError(view string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownView,
		Message:  fmt.Sprintf("未知のタブです: %s", view),
		Category: "validation",
		Action:   "overview、participants、plan、data、insights、recommendations、guide のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After に示された秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証の失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewAccountExistsError はメールアドレスが登録済みの場合のエラーを生成する。
func NewAccountExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "サインインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidAccountError はアカウント登録の入力が不正な場合のエラーを生成する。
func NewInvalidAccountError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAccount,
		Message:  fmt.Sprintf("登録内容が不正です: %s", reason),
		Category: "validation",
		Action:   "メールアドレスと6文字以上のパスワードを入力してください。",
	}
}
