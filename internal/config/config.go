// Package config reads CivicWatch configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Database
	DatabaseURL    string
	MigrationsPath string

	// HTTP server
	Port string

	// Guest refresh admission control
	HourlyJobCeiling     int           // max jobs started per rolling hour
	RunningJobCeiling    int           // max jobs concurrently running
	SessionCooldown      time.Duration // min gap between jobs from one session
	DefaultEstimateMs    int64         // ETA fallback when no history qualifies
	EstimateWindow       time.Duration // how far back to sample run durations
	EstimateMaxDurationMs int64        // durations above this are ignored (stuck runs)

	// Fan-out pacing
	ConnectorPacing time.Duration

	// Freshness
	FreshnessWindow time.Duration
	DefaultScope    string
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		Port: getEnv("PORT", "8080"),

		HourlyJobCeiling:      getEnvInt("REFRESH_HOURLY_CEILING", 50),
		RunningJobCeiling:     getEnvInt("REFRESH_RUNNING_CEILING", 20),
		SessionCooldown:       getEnvDuration("REFRESH_SESSION_COOLDOWN", 5*time.Minute),
		DefaultEstimateMs:     int64(getEnvInt("REFRESH_DEFAULT_ESTIMATE_MS", 120000)),
		EstimateWindow:        getEnvDuration("REFRESH_ESTIMATE_WINDOW", 30*24*time.Hour),
		EstimateMaxDurationMs: int64(getEnvInt("REFRESH_ESTIMATE_MAX_MS", 600000)),

		ConnectorPacing: getEnvDuration("CONNECTOR_PACING", time.Second),

		FreshnessWindow: getEnvDuration("FRESHNESS_WINDOW", 72*time.Hour),
		DefaultScope:    getEnv("DEFAULT_SCOPE", "city:austin-tx,county:travis-county-tx,state:texas"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
