package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/uxtemplate/internal/metrics"
	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Client            middleware.ClientConfig
	CSRF              middleware.CSRFConfig

	// 監視
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer // nilの場合/metricsを公開しない
	HealthChecker repository.Pinger

	// クライアントごとの作業状態
	Workspaces WorkspaceSource

	// 認証
	AuthConfig AuthHandlerConfig
	// OAuthLogin はGoogle OAuthを使う場合に設定する。nilの場合/auth/google/*を公開しない。
	OAuthLogin LoginURLProvider
	// Accounts はパスワード認証を使う場合に設定する。nilの場合/auth/signupを公開しない。
	Accounts AccountRegistrar

	// Production は本番環境かどうか。契約違反のログレベルを決める。
	Production bool
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  → Client → RateLimit(General) → CSRF
//
// /health と /metrics はClient以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	opts := Options{Logger: logger, Production: deps.Production}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 監視用のルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.Workspaces, deps.OAuthLogin, deps.Accounts, deps.AuthConfig, opts)
	recordsHandler := NewRecordsHandler(deps.Workspaces, opts)
	wsHandler := NewWorkspaceHandler(deps.Workspaces, opts)

	// --- クライアントID付きのルート ---
	// ミドルウェアスタック: Client → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.Client))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			// POST /auth/signin - サインイン（サインイン専用レート制限を追加）
			r.With(deps.RateLimiter.SignInMiddleware()).Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)

			if deps.Accounts != nil {
				r.With(deps.RateLimiter.SignInMiddleware()).Post("/signup", authHandler.SignUp)
			}

			if deps.OAuthLogin != nil {
				r.Get("/google/login", authHandler.Login)
				r.With(deps.RateLimiter.SignInMiddleware()).Get("/google/callback", authHandler.Callback)
			}
		})

		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))
			r.Get("/session", authHandler.Session)

			r.Get("/view", wsHandler.GetView)
			r.Put("/view", wsHandler.SelectView)

			r.Get("/methods", wsHandler.Methods)
			r.Post("/methods/toggle", wsHandler.ToggleMethod)

			r.Get("/stats", wsHandler.Stats)

			// レコードストア
			r.Route("/records/{kind}", func(r chi.Router) {
				r.Get("/", recordsHandler.List)
				r.Post("/", recordsHandler.Add)

				r.Route("/{index}", func(r chi.Router) {
					r.Delete("/", recordsHandler.Remove)
					r.Patch("/", recordsHandler.UpdateField)
					r.Post("/toggle", recordsHandler.Toggle)
				})
			})
		})
	})

	return r
}
