// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend selectors. The backend is chosen once at startup; nothing
// re-checks it per request.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// FrontendURL is the storefront base URL used for OAuth redirects
	// and CORS.
	FrontendURL string

	// StoreBackend selects the account store: "mongo" or "memory".
	StoreBackend string

	// Mongo holds MongoDB connection settings.
	Mongo MongoConfig

	// Redis holds optional Redis settings for rate limiting.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// OAuth holds Google provider credentials.
	OAuth OAuthConfig
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	// URI is the mongodb:// connection string.
	URI string

	// Database is the database name.
	Database string

	// ConnectTimeout bounds each connection/ping attempt.
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis connection parameters. Redis is optional: when
// URL is empty, rate limiting falls back to an in-memory limiter.
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey signs session tokens (must be 32+ characters in production).
	SecretKey string

	// SessionTTL is how long a session token stays valid.
	SessionTTL time.Duration

	// RememberTTL is how long a remember-me token stays valid. Longer than
	// SessionTTL on purpose: it is the credential that outlives sessions.
	RememberTTL time.Duration

	// LockoutThreshold is the failed-login count that locks an account.
	LockoutThreshold int

	// LockoutDuration is how long a triggered lock lasts.
	LockoutDuration time.Duration

	// PasswordMinLength is the minimum accepted password length.
	PasswordMinLength int
}

// OAuthConfig holds the Google OAuth client credentials. Both fields empty
// means Google sign-in is disabled.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string

	// RedirectURL is this backend's callback endpoint as registered with
	// the provider.
	RedirectURL string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		Port:         getEnvInt("PORT", 8080),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		StoreBackend: getEnv("STORE_BACKEND", StoreMongo),

		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DB", "gildora"),
			ConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 5*time.Second),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},

		Auth: AuthConfig{
			SecretKey:         getEnv("SECRET_KEY", ""),
			SessionTTL:        getEnvDuration("SESSION_TTL", 720*time.Hour),    // 30 days
			RememberTTL:       getEnvDuration("REMEMBER_TTL", 2160*time.Hour),  // 90 days
			LockoutThreshold:  getEnvInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:   getEnvDuration("LOCKOUT_DURATION", 2*time.Hour),
			PasswordMinLength: getEnvInt("PASSWORD_MIN_LENGTH", 8),
		},

		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/google/callback"),
		},
	}

	switch cfg.StoreBackend {
	case StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMongo, StoreMemory, cfg.StoreBackend)
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}

	// Provide a dev-only default secret so local dev works without .env.
	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "2h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
