// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/otakulist/otakulist/cache"
)

// Config holds all application configuration
type Config struct {
	API   APIConfig
	Cache CacheConfig

	Port         string `env:"PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

// APIConfig holds OtakuList API settings
type APIConfig struct {
	URL      string        `env:"OTAKULIST_API_URL" envDefault:"http://localhost:5000"`
	Token    string        `env:"OTAKULIST_API_TOKEN"`
	User     string        `env:"OTAKULIST_USER"`
	Timeout  time.Duration `env:"OTAKULIST_TIMEOUT" envDefault:"10s"`
	Coalesce bool          `env:"OTAKULIST_COALESCE" envDefault:"false"`
}

// CacheConfig selects and sizes the cache backend
type CacheConfig struct {
	Backend    string        `env:"CACHE_BACKEND" envDefault:"file"`
	Dir        string        `env:"CACHE_DIR"`
	LRUSize    int           `env:"CACHE_LRU_SIZE" envDefault:"1000"`
	MaxBytes   int           `env:"CACHE_MAX_BYTES" envDefault:"0"`
	RedisAddr  string        `env:"CACHE_REDIS_ADDR" envDefault:"localhost:6379"`
	SessionID  string        `env:"CACHE_SESSION_ID"`
	SessionTTL time.Duration `env:"CACHE_SESSION_TTL" envDefault:"12h"`
}

// Load reads configuration from environment variables, after merging a
// .env file from the working directory when there is one
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// HasUser returns true if a default user is configured for the stats page
func (c *Config) HasUser() bool {
	return c.API.User != ""
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid OTAKULIST_API_URL %q", c.API.URL)
	}
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendLRU, cache.BackendFile, cache.BackendRedis:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Cache.LRUSize < 0 || c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache sizes must not be negative")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("OTAKULIST_TIMEOUT must be positive, got %s", c.API.Timeout)
	}
	return nil
}

// CacheOptions converts the cache settings for cache.Open
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		Dir:        c.Cache.Dir,
		LRUSize:    c.Cache.LRUSize,
		MaxBytes:   c.Cache.MaxBytes,
		RedisAddr:  c.Cache.RedisAddr,
		SessionID:  c.Cache.SessionID,
		SessionTTL: c.Cache.SessionTTL,
	}
}
