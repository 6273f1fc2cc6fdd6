package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.StoreTimeout)
	assert.Equal(t, time.Hour, cfg.RateLimit.SweepInterval)
	assert.Equal(t, 2048, cfg.Security.MaxURLLength)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxBodyBytes)
	assert.True(t, cfg.Security.SQLInjectionCheck)
	assert.True(t, cfg.Security.XSSCheck)
	assert.Equal(t, 24*time.Hour, cfg.CSRF.TTL)
	assert.Equal(t, "x-csrf-token", cfg.CSRF.HeaderName)
	assert.False(t, cfg.Production)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_PORT", "9000")
	t.Setenv("GATEHOUSE_RATELIMIT_BACKEND", "redis")
	t.Setenv("GATEHOUSE_REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEHOUSE_REDIS_DB", "3")
	t.Setenv("GATEHOUSE_MAX_URL_LENGTH", "4096")
	t.Setenv("GATEHOUSE_CSRF_TTL", "1h")
	t.Setenv("GATEHOUSE_SQL_INJECTION_CHECK", "false")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
	assert.Equal(t, 3, cfg.RateLimit.RedisDB)
	assert.Equal(t, 4096, cfg.Security.MaxURLLength)
	assert.Equal(t, time.Hour, cfg.CSRF.TTL)
	assert.False(t, cfg.Security.SQLInjectionCheck)
	assert.Equal(t, "debug", cfg.Observability.LogLevelName)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatehouse.yaml")
	data := []byte(`
server:
  port: "8888"
rate_limit:
  backend: sqlite
  sqlite_path: /tmp/gatehouse.db
production: true
csrf:
  secret: file-secret
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("GATEHOUSE_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.RateLimit.Backend)
	assert.Equal(t, "/tmp/gatehouse.db", cfg.RateLimit.SQLitePath)
	assert.True(t, cfg.Production)
	assert.Equal(t, "file-secret", cfg.CSRF.Secret)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"8888\"\n"), 0o600))
	t.Setenv("GATEHOUSE_CONFIG_FILE", path)
	t.Setenv("GATEHOUSE_PORT", "7777")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name: "ports collide",
			mutate: func(c *Config) {
				c.Server.Port = "8080"
				c.Server.HealthPort = "8080"
			},
			wantErr: "must be different",
		},
		{
			name:    "postgres backend without URL",
			mutate:  func(c *Config) { c.RateLimit.Backend = "postgres" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "sqlite backend without path",
			mutate:  func(c *Config) { c.RateLimit.Backend = "sqlite" },
			wantErr: "sqlite path is required",
		},
		{
			name:    "redis backend without address",
			mutate:  func(c *Config) { c.RateLimit.Backend = "redis" },
			wantErr: "redis address is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.RateLimit.Backend = "memcached" },
			wantErr: "invalid rate limit backend",
		},
		{
			name:    "production without csrf secret",
			mutate:  func(c *Config) { c.Production = true },
			wantErr: "CSRF secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
