package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret is only suitable for local development.
const DefaultSessionSecret = "quizspin-default-secret-change-in-production-32ch"

// Bank source identifiers for BANK_SOURCE.
const (
	BankSourceHTTP     = "http"
	BankSourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// SessionSecret is the raw secret the cookie signing key is derived from.
	SessionSecret string
	SessionMaxAge time.Duration
	CookieSecure  bool

	BankSource       string
	BankURL          string
	BankFile         string
	BankCacheTTL     time.Duration
	BankRefreshEvery time.Duration
	BankFetchTimeout time.Duration

	// RedisURL and DatabaseURL are optional; empty disables the backend.
	RedisURL    string
	DatabaseURL string
	MaxDBConns  int32

	DrawRatePerMinute int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		SessionSecret:     getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionMaxAge:     time.Duration(getEnvInt("SESSION_MAX_AGE_HOURS", 24*7)) * time.Hour,
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),
		BankSource:        getEnv("BANK_SOURCE", BankSourceHTTP),
		BankURL:           getEnv("BANK_URL", ""),
		BankFile:          getEnv("BANK_FILE", "./public/bank_soal.json"),
		BankCacheTTL:      time.Duration(getEnvInt("BANK_CACHE_TTL_SECONDS", 300)) * time.Second,
		BankRefreshEvery:  time.Duration(getEnvInt("BANK_REFRESH_SECONDS", 240)) * time.Second,
		BankFetchTimeout:  time.Duration(getEnvInt("BANK_FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		RedisURL:          getEnv("REDIS_URL", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MaxDBConns:        int32(getEnvInt("MAX_DB_CONNS", 8)),
		DrawRatePerMinute: getEnvInt("DRAW_RATE_PER_MINUTE", 60),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
