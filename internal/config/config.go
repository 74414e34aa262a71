package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bilimpoz/testbuilder-service/pkg/db"
)

type Config struct {
	DB db.Config

	RedisURL        string
	DraftKeyPrefix  string
	DraftTTL        time.Duration
	AutosaveWindow  time.Duration
	HTTPPort        string
	GRPCPort        string
	SchemaGuard     bool
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	dbPort, err := getEnvInt("DB_PORT", 3306)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("DRAFT_TTL", 0)
	if err != nil {
		return nil, err
	}
	window, err := getEnvDuration("AUTOSAVE_DEBOUNCE", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	guard, err := getEnvBool("SCHEMA_GUARD", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		DB: db.Config{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         dbPort,
			User:         getEnv("DB_USER", "root"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_DATABASE", "bilimpoz"),
			MaxOpenConns: maxOpen,
		},
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DraftKeyPrefix:  getEnv("DRAFT_KEY_PREFIX", "testbuilder:draft"),
		DraftTTL:        ttl,
		AutosaveWindow:  window,
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50070"),
		SchemaGuard:     guard,
		ShutdownTimeout: 10 * time.Second,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
