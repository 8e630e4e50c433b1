package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all process-wide settings. It is built once at startup and
// passed into components; nothing reads the environment after Load returns.
type Config struct {
	DatabaseURL        string
	HTTPPort           string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	DefaultAccountSlug string
	StorageDir         string
	LogLevel           string
}

func Load() Config {
	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		JWTSecret:          getenv("JWT_SECRET", "change-me-in-production-use-long-secret"),
		AccessTokenTTL:     minutes("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		RefreshTokenTTL:    minutes("REFRESH_TOKEN_EXPIRE_MINUTES", 10080),
		DefaultAccountSlug: getenv("DEFAULT_ACCOUNT_SLUG", "hashagile"),
		StorageDir:         getenv("STORAGE_DIR", "storage"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func minutes(key string, def int) time.Duration {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}
