package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "COOKIE_SECURE",
		"OTAKULIST_API_URL", "OTAKULIST_API_TOKEN", "OTAKULIST_USER",
		"OTAKULIST_TIMEOUT", "OTAKULIST_COALESCE",
		"CACHE_BACKEND", "CACHE_DIR", "CACHE_LRU_SIZE", "CACHE_MAX_BYTES",
		"CACHE_REDIS_ADDR", "CACHE_SESSION_ID", "CACHE_SESSION_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.URL != "http://localhost:5000" {
		t.Errorf("Expected default API URL, got '%s'", cfg.API.URL)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Expected default backend 'file', got '%s'", cfg.Cache.Backend)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %s", cfg.API.Timeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got '%s'", cfg.Port)
	}
	if cfg.HasUser() {
		t.Error("Expected no user by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTAKULIST_API_URL", "https://api.otakulist.test")
	t.Setenv("OTAKULIST_API_TOKEN", "secret")
	t.Setenv("OTAKULIST_USER", "mika")
	t.Setenv("OTAKULIST_TIMEOUT", "3s")
	t.Setenv("OTAKULIST_COALESCE", "true")
	t.Setenv("CACHE_BACKEND", "lru")
	t.Setenv("CACHE_LRU_SIZE", "50")
	t.Setenv("CACHE_SESSION_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.URL != "https://api.otakulist.test" {
		t.Errorf("Expected API URL override, got '%s'", cfg.API.URL)
	}
	if cfg.API.Token != "secret" {
		t.Errorf("Expected token 'secret', got '%s'", cfg.API.Token)
	}
	if !cfg.HasUser() || cfg.API.User != "mika" {
		t.Errorf("Expected user 'mika', got '%s'", cfg.API.User)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("Expected timeout 3s, got %s", cfg.API.Timeout)
	}
	if !cfg.API.Coalesce {
		t.Error("Expected coalescing to be enabled")
	}

	opts := cfg.CacheOptions()
	if opts.Backend != "lru" || opts.LRUSize != 50 {
		t.Errorf("Expected lru backend of size 50, got %s/%d", opts.Backend, opts.LRUSize)
	}
	if opts.SessionTTL != time.Hour {
		t.Errorf("Expected session ttl 1h, got %s", opts.SessionTTL)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTAKULIST_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Error("Expected Load to fail for an invalid timeout")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:   APIConfig{URL: "http://localhost:5000", Timeout: time.Second},
			Cache: CacheConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "redis backend", mutate: func(c *Config) { c.Cache.Backend = "redis" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "disk" }, wantErr: "CACHE_BACKEND"},
		{name: "relative url", mutate: func(c *Config) { c.API.URL = "/api" }, wantErr: "OTAKULIST_API_URL"},
		{name: "negative size", mutate: func(c *Config) { c.Cache.LRUSize = -1 }, wantErr: "negative"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "OTAKULIST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
