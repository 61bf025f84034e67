// Package config loads application configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	Port string
	Env  string // "development", "production"

	DatabaseURL   string
	RunMigrations bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Category tree cache
	TreeCacheTTL time.Duration

	// Bounded fan-out used by descendant and product cascades
	CascadeConcurrency int

	// Auth
	JWKSURL     string
	JWTAudience string
	JWTIssuer   string

	// Background jobs
	TreeWarmInterval  time.Duration
	TreeAuditInterval time.Duration
}

// Load reads the configuration. DATABASE_URL is required; everything else
// has a development default.
func Load() (*Config, error) {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	cfg := &Config{
		Port: envOrDefault("PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
		JWTAudience: os.Getenv("AUTH_AUDIENCE"),
		JWTIssuer:   os.Getenv("AUTH_ISSUER"),
	}

	var err error
	if cfg.RunMigrations, err = envBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.CascadeConcurrency, err = envInt("CASCADE_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.TreeCacheTTL, err = envDuration("CATEGORY_TREE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TreeWarmInterval, err = envDuration("CATEGORY_TREE_WARM_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TreeAuditInterval, err = envDuration("CATEGORY_AUDIT_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.CascadeConcurrency < 1 {
		return nil, fmt.Errorf("CASCADE_CONCURRENCY must be at least 1")
	}
	if cfg.IsProduction() && cfg.JWKSURL == "" {
		return nil, fmt.Errorf("AUTH_JWKS_URL must be set in production")
	}

	return cfg, nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// IsProduction reports whether the application runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthEnabled reports whether JWKS verification is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWKSURL != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
