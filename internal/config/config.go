package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the TableLens server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Analytics AnalyticsConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AnalyticsConfig points at the upstream analytics service. An empty BaseURL
// disables it; generate requests must then carry their own analysis.
type AnalyticsConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Enabled reports whether an analytics service is configured.
func (c AnalyticsConfig) Enabled() bool {
	return c.BaseURL != ""
}

type AuthConfig struct {
	AdminCode string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type CacheConfig struct {
	ActionListTTL time.Duration
}

const minAdminCodeLen = 16

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TABLELENS_PORT", 8080),
			Env:  envString("TABLELENS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Analytics: AnalyticsConfig{
			BaseURL: strings.TrimRight(os.Getenv("ANALYTICS_BASE_URL"), "/"),
			Token:   os.Getenv("ANALYTICS_TOKEN"),
			Timeout: envDuration("ANALYTICS_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			AdminCode: os.Getenv("ADMIN_ACCESS_CODE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Cache: CacheConfig{
			ActionListTTL: envDuration("ACTION_LIST_CACHE_TTL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Analytics.Enabled() &&
		!strings.HasPrefix(c.Analytics.BaseURL, "http://") && !strings.HasPrefix(c.Analytics.BaseURL, "https://") {
		return fmt.Errorf("ANALYTICS_BASE_URL must start with http:// or https://, got %q", c.Analytics.BaseURL)
	}
	if c.Analytics.Timeout <= 0 {
		return fmt.Errorf("ANALYTICS_TIMEOUT must be positive, got %s", c.Analytics.Timeout)
	}

	if c.Auth.AdminCode != "" && len(c.Auth.AdminCode) < minAdminCodeLen {
		return fmt.Errorf("ADMIN_ACCESS_CODE must be at least %d characters", minAdminCodeLen)
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}

	if c.Cache.ActionListTTL <= 0 {
		return fmt.Errorf("ACTION_LIST_CACHE_TTL must be positive, got %s", c.Cache.ActionListTTL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
