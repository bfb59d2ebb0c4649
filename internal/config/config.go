package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort  string
	GinMode     string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string
	// APIKey guards the audit endpoints and the live security event stream.
	// Empty means those surfaces reject every request.
	APIKey        string
	QuestionsPath string
	ResultsPath   string
	// KeystoreSecret seals the on-disk session store used by auditctl and the
	// e2e harness. Must be at least 16 bytes when set.
	KeystoreSecret  string
	RateLimitMax    int
	RateLimitWindow time.Duration
	BlockTTL        time.Duration
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "pretty"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MaxDBConns:      int32(getEnvInt("MAX_DB_CONNS", 16)),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		APIKey:          getEnv("AUDIT_API_KEY", ""),
		QuestionsPath:   getEnv("QUESTIONS_PATH", ""),
		ResultsPath:     getEnv("RESULTS_PATH", "./data/quiz-results.json"),
		KeystoreSecret:  getEnv("KEYSTORE_SECRET", ""),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		BlockTTL:        time.Duration(getEnvInt("BLOCK_TTL_HOURS", 24)) * time.Hour,
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
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
