// Package config loads service configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the metrics API service.
type Config struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string

	JWTSecret      string
	AccessTokenTTL time.Duration
	SystemTokenTTL time.Duration

	RetentionDays    int
	SyncInterval     time.Duration
	SyncInitialDelay time.Duration
	BufferCapacity   int
	FetchLimit       int

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	SeedAdminEmail    string
	SeedAdminPassword string
}

// Load constructs a Config from environment variables.
func Load() Config {
	return Config{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":4000"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://proker:proker@db:5432/proker?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "db/migrations"),

		JWTSecret:      GetString("JWT_SECRET", "your-secret-key"),
		AccessTokenTTL: time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		SystemTokenTTL: time.Duration(GetInt("SYSTEM_TOKEN_TTL_MIN", 5)) * time.Minute,

		RetentionDays:    GetInt("METRICS_RETENTION_DAYS", 30),
		SyncInterval:     time.Duration(GetInt("METRICS_SYNC_INTERVAL_MIN", 5)) * time.Minute,
		SyncInitialDelay: time.Duration(GetInt("METRICS_SYNC_INITIAL_DELAY_SECONDS", 60)) * time.Second,
		BufferCapacity:   GetInt("METRICS_BUFFER_CAP", 1000),
		FetchLimit:       GetInt("METRICS_FETCH_LIMIT", 1000),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),

		SeedAdminEmail:    GetString("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: GetString("SEED_ADMIN_PASSWORD", ""),
	}
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
