// Package config handles the environment configuration and the
// per-source settings file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds backend connection settings and pipeline defaults, loaded
// from environment variables (populated by the .env file in main).
type Config struct {
	PostgresURL   string
	SQLServerURL  string
	MongoURL      string
	MongoDatabase string
	RedisAddr     string
	RedisDB       int
	LogFile       string

	PageSize       int
	Workers        int
	MaxAttempts    int
	BaseDelay      time.Duration
	CacheTTL       time.Duration
	RequestTimeout time.Duration
}

// LoadConfig reads settings from the environment. Connection strings stay
// optional here; the CLI validates the ones the chosen backends need.
func LoadConfig() (*Config, error) {
	return &Config{
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		SQLServerURL:  os.Getenv("SQLSERVER_URL"),
		MongoURL:      os.Getenv("MONGO_URL"),
		MongoDatabase: getenvDefault("MONGO_DB", "ingestor"),
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		LogFile:       os.Getenv("LOG_FILE"),

		PageSize:       getenvInt("PAGE_SIZE", 100),
		Workers:        getenvInt("WORKERS", 4),
		MaxAttempts:    getenvInt("MAX_ATTEMPTS", 5),
		BaseDelay:      time.Duration(getenvInt("RETRY_BASE_DELAY_SECONDS", 5)) * time.Second,
		CacheTTL:       time.Duration(getenvInt("CACHE_TTL_MINUTES", 1440)) * time.Minute,
		RequestTimeout: time.Duration(getenvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
