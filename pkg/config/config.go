package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newsdeck/gatehouse/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// RateLimit configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// CSRF configuration
	CSRF CSRFConfig `yaml:"csrf"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Production toggles the redaction posture of the error translator
	Production bool `yaml:"production"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// RateLimitConfig holds rate limit store configuration
type RateLimitConfig struct {
	// Backend selects the counter store: memory, postgres, sqlite, redis
	Backend string `yaml:"backend"`
	// PostgresURL connects the sql backend in production
	PostgresURL string `yaml:"postgres_url"`
	// SQLitePath is the database file for local single-node runs
	SQLitePath string `yaml:"sqlite_path"`
	// AtomicIncrement enables the race-free sql increment
	AtomicIncrement bool `yaml:"atomic_increment"`
	// RedisAddr/RedisPassword/RedisDB connect the redis backend
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	// StoreTimeout bounds each store call
	StoreTimeout time.Duration `yaml:"store_timeout"`
	// SweepInterval schedules the expired-window cleanup
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SecurityConfig holds the inspector's tunable ceilings and toggles
type SecurityConfig struct {
	MaxURLLength        int   `yaml:"max_url_length"`
	MaxHeaderBytes      int   `yaml:"max_header_bytes"`
	MaxBodyBytes        int64 `yaml:"max_body_bytes"`
	MaxParamNameLength  int   `yaml:"max_param_name_length"`
	MaxParamValueLength int   `yaml:"max_param_value_length"`
	SQLInjectionCheck   bool  `yaml:"sql_injection_check"`
	XSSCheck            bool  `yaml:"xss_check"`
}

// CSRFConfig holds anti-forgery token settings
type CSRFConfig struct {
	// Secret keys the token HMAC; required outside development
	Secret string `yaml:"secret"`
	// TTL is the token lifetime
	TTL time.Duration `yaml:"ttl"`
	// HeaderName carries the token, default x-csrf-token
	HeaderName string `yaml:"header_name"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from the optional YAML file named by
// GATEHOUSE_CONFIG_FILE, then overlays environment variables
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := getEnv("GATEHOUSE_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()
	cfg.Observability.LogLevel = observability.ParseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			StoreTimeout:  500 * time.Millisecond,
			SweepInterval: time.Hour,
		},
		Security: SecurityConfig{
			MaxURLLength:        2048,
			MaxHeaderBytes:      16 * 1024,
			MaxBodyBytes:        1 << 20,
			MaxParamNameLength:  128,
			MaxParamValueLength: 8192,
			SQLInjectionCheck:   true,
			XSSCheck:            true,
		},
		CSRF: CSRFConfig{
			TTL:        24 * time.Hour,
			HeaderName: "x-csrf-token",
		},
		Observability: ObservabilityConfig{
			LogLevelName:   "info",
			MetricsEnabled: true,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables on whatever the defaults and the
// file produced
func (c *Config) loadEnv() {
	c.Server.Host = getEnv("GATEHOUSE_HOST", c.Server.Host)
	c.Server.Port = getEnv("GATEHOUSE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("GATEHOUSE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("GATEHOUSE_HEALTH_PORT", c.Server.HealthPort)

	c.RateLimit.Backend = getEnv("GATEHOUSE_RATELIMIT_BACKEND", c.RateLimit.Backend)
	c.RateLimit.PostgresURL = getEnv("GATEHOUSE_POSTGRES_URL", c.RateLimit.PostgresURL)
	c.RateLimit.SQLitePath = getEnv("GATEHOUSE_SQLITE_PATH", c.RateLimit.SQLitePath)
	c.RateLimit.AtomicIncrement = getEnvBool("GATEHOUSE_RATELIMIT_ATOMIC", c.RateLimit.AtomicIncrement)
	c.RateLimit.RedisAddr = getEnv("GATEHOUSE_REDIS_ADDR", c.RateLimit.RedisAddr)
	c.RateLimit.RedisPassword = getEnv("GATEHOUSE_REDIS_PASSWORD", c.RateLimit.RedisPassword)
	c.RateLimit.RedisDB = getEnvInt("GATEHOUSE_REDIS_DB", c.RateLimit.RedisDB)
	c.RateLimit.StoreTimeout = getEnvDuration("GATEHOUSE_RATELIMIT_STORE_TIMEOUT", c.RateLimit.StoreTimeout)
	c.RateLimit.SweepInterval = getEnvDuration("GATEHOUSE_RATELIMIT_SWEEP_INTERVAL", c.RateLimit.SweepInterval)

	c.Security.MaxURLLength = getEnvInt("GATEHOUSE_MAX_URL_LENGTH", c.Security.MaxURLLength)
	c.Security.MaxHeaderBytes = getEnvInt("GATEHOUSE_MAX_HEADER_BYTES", c.Security.MaxHeaderBytes)
	c.Security.MaxBodyBytes = getEnvInt64("GATEHOUSE_MAX_BODY_BYTES", c.Security.MaxBodyBytes)
	c.Security.MaxParamNameLength = getEnvInt("GATEHOUSE_MAX_PARAM_NAME_LENGTH", c.Security.MaxParamNameLength)
	c.Security.MaxParamValueLength = getEnvInt("GATEHOUSE_MAX_PARAM_VALUE_LENGTH", c.Security.MaxParamValueLength)
	c.Security.SQLInjectionCheck = getEnvBool("GATEHOUSE_SQL_INJECTION_CHECK", c.Security.SQLInjectionCheck)
	c.Security.XSSCheck = getEnvBool("GATEHOUSE_XSS_CHECK", c.Security.XSSCheck)

	c.CSRF.Secret = getEnv("GATEHOUSE_CSRF_SECRET", c.CSRF.Secret)
	c.CSRF.TTL = getEnvDuration("GATEHOUSE_CSRF_TTL", c.CSRF.TTL)
	c.CSRF.HeaderName = getEnv("GATEHOUSE_CSRF_HEADER", c.CSRF.HeaderName)

	c.Observability.LogLevelName = getEnv("GATEHOUSE_LOG_LEVEL", c.Observability.LogLevelName)
	c.Observability.MetricsEnabled = getEnvBool("GATEHOUSE_METRICS_ENABLED", c.Observability.MetricsEnabled)

	c.Production = getEnvBool("GATEHOUSE_PRODUCTION", c.Production)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "postgres":
		if c.RateLimit.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres rate limit backend")
		}
	case "sqlite":
		if c.RateLimit.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite rate limit backend")
		}
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory, postgres, sqlite, or redis)", c.RateLimit.Backend)
	}

	if c.Production && c.CSRF.Secret == "" {
		return fmt.Errorf("CSRF secret is required in production")
	}

	return nil
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true"
	}
	return defaultVal
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
