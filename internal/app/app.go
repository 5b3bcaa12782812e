package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/uxtemplate/internal/auth"
	"github.com/hitoshi/uxtemplate/internal/config"
	"github.com/hitoshi/uxtemplate/internal/database"
	"github.com/hitoshi/uxtemplate/internal/handler"
	"github.com/hitoshi/uxtemplate/internal/logger"
	"github.com/hitoshi/uxtemplate/internal/metrics"
	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/repository"
	"github.com/hitoshi/uxtemplate/internal/security"
	"github.com/hitoshi/uxtemplate/internal/worker/cleanup"
	"github.com/hitoshi/uxtemplate/internal/workspace"
)

// IdPへのリクエストの制限。
const (
	idpRequestTimeout  = 10 * time.Second
	idpMaxResponseSize = 1 << 20 // 1MB
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if !cmd.RequiresConfig() {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("auth_provider", cfg.AuthProvider),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.Bool("persist_records", cfg.PersistRecords),
		slog.Int("persist_retry_attempts", cfg.PersistRetries),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで起動する構成要素をまとめたもの。
type server struct {
	handler     http.Handler
	manager     *workspace.Manager
	rateLimiter *middleware.RateLimiter
	cleanupJob  *cleanup.CleanupJob
	closer      io.Closer
}

// Close はレートリミッターと永続化バックエンドの接続を解放する。
func (s *server) Close() error {
	s.rateLimiter.Stop()
	return s.closer.Close()
}

// newServer は設定から全依存関係をワイヤリングする。
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	log := slog.Default()

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. 永続化バックエンド
	backend, closer, err := repository.Open(ctx, repository.OpenOptions{
		Driver:      cfg.StorageDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		FileDir:     cfg.FileStoreDir,
		S3: repository.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
		FirestoreProjectID:  cfg.FirestoreProjectID,
		FirestoreCollection: cfg.FirestoreCollection,
		RetryAttempts:       cfg.PersistRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := repository.NewGuarded(backend, log, collector)

	// 到達できなくても起動は継続する
	if err := store.Ping(ctx); err != nil {
		log.Warn("storage is not reachable at startup",
			slog.String("driver", cfg.StorageDriver),
			slog.String("error", err.Error()),
		)
	}

	// 3. IdP
	provider, oauthLogin, accounts := newIdentityProvider(cfg, store)

	// 4. クライアントごとの作業状態
	manager := workspace.NewManager(workspace.ManagerConfig{
		Store:          store,
		Provider:       provider,
		Sanitizer:      security.NewTextSanitizer(),
		Metrics:        collector,
		Logger:         log,
		PersistRecords: cfg.PersistRecords,
		InitTimeout:    cfg.InitTimeout,
	})

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Client: middleware.ClientConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics:       collector,
		Gatherer:      reg,
		HealthChecker: store,
		Workspaces:    manager,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},
		OAuthLogin: oauthLogin,
		Accounts:   accounts,
		Production: cfg.IsProduction(),
	}

	// 6. アイドルなワークスペースの破棄
	cleanupJob := cleanup.NewCleanupJob(manager, log)
	cleanupJob.IdleTTL = cfg.WorkspaceIdleTTL

	return &server{
		handler:     handler.NewRouter(deps),
		manager:     manager,
		rateLimiter: rateLimiter,
		cleanupJob:  cleanupJob,
		closer:      closer,
	}, nil
}

// newIdentityProvider はAUTH_PROVIDERに応じたIdPを返す。
// Googleの場合はOAuthの認証URLを生成するプロバイダーも、
// パスワード認証の場合はアカウントを登録するプロバイダーも返す。
func newIdentityProvider(cfg *config.Config, store repository.KeyValueStore) (auth.IdentityProvider, handler.LoginURLProvider, handler.AccountRegistrar) {
	switch cfg.AuthProvider {
	case auth.ProviderNameGoogle:
	case auth.ProviderNamePassword:
		accounts := auth.NewPasswordProvider(store, cfg.PasswordHashCost)
		return accounts, nil, accounts
	default:
		return auth.NewLocalProvider(), nil, nil
	}

	ssrfGuard := security.NewSSRFGuard(security.OutboundPolicy{
		Timeout:          idpRequestTimeout,
		MaxResponseBytes: idpMaxResponseSize,
		AllowedHosts:     security.GoogleIdentityHosts,
	})
	google := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:          cfg.GoogleClientID,
		ClientSecret:      cfg.GoogleClientSecret,
		RedirectURL:       cfg.GoogleRedirectURL,
		HTTPClient:        ssrfGuard.NewSafeClient(),
		ValidateAvatarURL: ssrfGuard.ValidateURL,
	})
	return google, google, nil
}

// rateLimiterConfig は設定のreq/min/clientをレートリミッターのreq/secに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSignIn > 0 {
		rl.SignInRate = rate.Limit(float64(cfg.RateLimitSignIn) / 60.0)
		rl.SignInBurst = cfg.RateLimitSignIn
	}
	return rl
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、アイドルなワークスペースの破棄とHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	go srv.cleanupJob.Start(ctx, cfg.CleanupInterval)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLバックエンドのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL (STORAGE_DRIVER=%s)", cfg.StorageDriver)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	result, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Int("from_version", int(result.From)),
		slog.Int("to_version", int(result.To)),
		slog.Bool("changed", result.Changed()),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
