package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port            string
	LedgerDriver    string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	AdminToken      string
	RateLimitRPS    int
	NewsMaxAttempts int
	BroadcastQueue  int
	WSWriteTimeout  time.Duration
	Debug           bool
}

var (
	instance *Config
	loadErr  error
	once     sync.Once
)

// Load loads configuration from environment variables once per process
func Load() (*Config, error) {
	once.Do(func() {
		instance, loadErr = FromEnv()
	})
	return instance, loadErr
}

// FromEnv builds a fresh Config from the current environment. Only malformed values
// fail here; each command validates what it needs.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "5001"),
		LedgerDriver: getEnv("LEDGER_DRIVER", DriverPostgres),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		NATSURL:      getEnv("NATS_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),
		Debug:        getEnvBool("DEBUG", false),
	}

	var err error
	if cfg.RateLimitRPS, err = getEnvInt("RATE_LIMIT_RPS", 50); err != nil {
		return nil, err
	}
	if cfg.NewsMaxAttempts, err = getEnvInt("NEWS_MAX_ATTEMPTS", 50); err != nil {
		return nil, err
	}
	if cfg.BroadcastQueue, err = getEnvInt("BROADCAST_QUEUE", 1); err != nil {
		return nil, err
	}
	if cfg.WSWriteTimeout, err = getEnvDuration("WS_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.LedgerDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres ledger")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver)
	}
	if c.RateLimitRPS <= 0 {
		return errors.New("RATE_LIMIT_RPS must be positive")
	}
	if c.NewsMaxAttempts <= 0 {
		return errors.New("NEWS_MAX_ATTEMPTS must be positive")
	}
	if c.BroadcastQueue <= 0 {
		return errors.New("BROADCAST_QUEUE must be positive")
	}
	if c.WSWriteTimeout <= 0 {
		return errors.New("WS_WRITE_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return b
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
