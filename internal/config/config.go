package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// AppEnvProduction は本番環境を示すAPP_ENVの値。
const AppEnvProduction = "production"

var (
	authProviders  = []string{"local", "google", "password"}
	storageDrivers = []string{"memory", "file", "postgres", "sqlite", "s3", "firestore"}
	logLevels      = []string{"debug", "info", "warn", "error"}
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string
	AppEnv     string
	LogLevel   string

	// Auth
	AuthProvider       string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	PasswordHashCost   int

	// Storage
	StorageDriver       string
	DatabaseURL         string
	SQLitePath          string
	FileStoreDir        string
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3PathStyle         bool
	FirestoreProjectID  string
	FirestoreCollection string
	PersistRecords      bool
	PersistRetries      int

	// Session
	SessionMaxAge    int
	InitTimeout      time.Duration
	WorkspaceIdleTTL time.Duration
	CleanupInterval  time.Duration

	// Rate Limit（req/min/client）
	RateLimitGeneral int
	RateLimitSignIn  int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == AppEnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.AuthProvider = strings.ToLower(getEnvString("AUTH_PROVIDER", "local"))
	if !slices.Contains(authProviders, cfg.AuthProvider) {
		return nil, fmt.Errorf("invalid AUTH_PROVIDER %q: must be one of %v", cfg.AuthProvider, authProviders)
	}
	if cfg.AuthProvider == "google" {
		cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
		if cfg.GoogleClientID == "" {
			missing = append(missing, "GOOGLE_CLIENT_ID")
		}
		cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
		if cfg.GoogleClientSecret == "" {
			missing = append(missing, "GOOGLE_CLIENT_SECRET")
		}
		cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
		if cfg.GoogleRedirectURL == "" {
			missing = append(missing, "GOOGLE_REDIRECT_URL")
		}
	}
	if cfg.AuthProvider == "password" {
		// 0はbcryptのデフォルトコスト
		cfg.PasswordHashCost = getEnvInt("PASSWORD_HASH_COST", 0)
		if cfg.PasswordHashCost != 0 && (cfg.PasswordHashCost < 4 || cfg.PasswordHashCost > 31) {
			return nil, fmt.Errorf("invalid PASSWORD_HASH_COST %d: must be between 4 and 31", cfg.PasswordHashCost)
		}
	}

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", "memory"))
	if !slices.Contains(storageDrivers, cfg.StorageDriver) {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: must be one of %v", cfg.StorageDriver, storageDrivers)
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "uxtemplate.db")
	cfg.FileStoreDir = getEnvString("FILE_STORE_DIR", "data")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3PathStyle = getEnvBool("S3_PATH_STYLE", false)
	cfg.FirestoreProjectID = os.Getenv("FIRESTORE_PROJECT_ID")
	cfg.FirestoreCollection = getEnvString("FIRESTORE_COLLECTION", "ux_template")

	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	case "firestore":
		if cfg.FirestoreProjectID == "" {
			missing = append(missing, "FIRESTORE_PROJECT_ID")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: must be one of %v", cfg.LogLevel, logLevels)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.PersistRecords = getEnvBool("PERSIST_RECORDS", false)
	cfg.PersistRetries = getEnvInt("PERSIST_RETRY_ATTEMPTS", 3)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400*30)
	cfg.InitTimeout = getEnvDuration("INIT_TIMEOUT", 5*time.Second)
	cfg.WorkspaceIdleTTL = getEnvDuration("WORKSPACE_IDLE_TTL", 30*time.Minute)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGNIN", 10)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
