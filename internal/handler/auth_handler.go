// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/uxtemplate/internal/auth"
	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/model"
)

const oauthStateCookie = "oauth_state"

// LoginURLProvider はOAuthの認証URLを生成する。auth.GoogleOAuthProviderが実装する。
type LoginURLProvider interface {
	GetLoginURL(state string) string
}

// AccountRegistrar はメールアドレスとパスワードでアカウントを登録する。auth.PasswordProviderが実装する。
type AccountRegistrar interface {
	SignUp(ctx context.Context, email, password, displayName string) (*model.Identity, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler はサインイン状態を扱うHTTPハンドラー。
type AuthHandler struct {
	workspaces WorkspaceSource
	login      LoginURLProvider
	accounts   AccountRegistrar
	config     AuthHandlerConfig
	errors     errorWriter
}

// NewAuthHandler はAuthHandlerを生成する。loginはOAuthを使わない場合nilでよい。
// accountsはパスワード認証を使わない場合nilでよい。
func NewAuthHandler(workspaces WorkspaceSource, login LoginURLProvider, accounts AccountRegistrar, config AuthHandlerConfig, opts Options) *AuthHandler {
	return &AuthHandler{
		workspaces: workspaces,
		login:      login,
		accounts:   accounts,
		config:     config,
		errors:     opts.errorWriter(),
	}
}

// signInRequest はサインインリクエストのボディ。ローカルプロバイダーでは省略できる。
type signInRequest struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpRequest はアカウント登録リクエストのボディ。
type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Session は現在のセッション状態を返す。読み込み中の場合はstateがloadingになる。
// GET /api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ws.State())
}

// SignIn はIdPで認証し、成功すればセッション状態を返す。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidRequest(w, "body must be a JSON object")
		return
	}

	cred := auth.Credential{Code: req.Code, Email: req.Email, Password: req.Password}
	if _, err := ws.SignIn(r.Context(), cred); err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "signin"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ws.State())
}

// SignUp はアカウントを登録し、そのままサインインしたセッション状態を返す。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "body must be a JSON object with email and password")
		return
	}

	identity, err := h.accounts.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "signup"})
		return
	}
	slog.Info("account registered", slog.String("identity_id", identity.ID))

	cred := auth.Credential{Email: req.Email, Password: req.Password}
	if _, err := ws.SignIn(r.Context(), cred); err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "signup"})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, ws.State())
}

// SignOut はサインアウトする。常に成功する。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ws.SignOut(r.Context()))
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.login.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、認可コードでサインインする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		writeInvalidRequest(w, "invalid state parameter")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeInvalidRequest(w, "missing authorization code")
		return
	}

	// 3. セッションゲートでサインイン
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	if _, err := ws.SignIn(r.Context(), auth.Credential{Code: code}); err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "oauth_callback"})
		return
	}

	// 4. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// compile-time interface check
var (
	_ LoginURLProvider = (*auth.GoogleOAuthProvider)(nil)
	_ AccountRegistrar = (*auth.PasswordProvider)(nil)
)
