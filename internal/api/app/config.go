package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/phlox-social/phlox/pkg/jwtx"
)

type Config struct {
	SigningSecret string // Required: HS256 secret for access tokens
	Issuer        string // Optional: issuer claim for tokens (default: phlox)

	AccessTokenTTL  time.Duration // Optional: access token + session access-entry lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Optional: refresh token + session refresh-entry lifetime (default: 168h)

	RedisURL     string // Optional: session store URL (default: redis://localhost:6379/0)
	DatabaseFile string // Optional: path to SQLite database file (default: ./phlox.db)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		SigningSecret:       os.Getenv("SESSION_SIGNING_SECRET"),
		Issuer:              getEnvOrDefault("TOKEN_ISSUER", "phlox"),
		AccessTokenTTL:      getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL:     getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseFile:        getEnvOrDefault("DATABASE_FILE", "phlox.db"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate rejects configurations the service must not start with. There is
// deliberately no default signing secret: a guessable secret silently signs
// valid tokens for anyone who reads the source.
func (cfg Config) Validate() error {
	if cfg.SigningSecret == "" {
		return errors.New("SESSION_SIGNING_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.AccessTokenTTL > cfg.RefreshTokenTTL {
		return fmt.Errorf("access token TTL (%s) must not exceed refresh token TTL (%s)",
			cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are read as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
