package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

// Config holds runtime configuration for the client and the stub server.
type Config struct {
	Env            string        `envconfig:"DASH_ENV" default:"development"`
	BaseURL        string        `envconfig:"DASH_BASE_URL" default:"http://127.0.0.1:4173"`
	PathPrefix     string        `envconfig:"DASH_PATH_PREFIX"`
	Timezone       string        `envconfig:"DASH_TIMEZONE" default:"Local"`
	RequestTimeout time.Duration `envconfig:"DASH_REQUEST_TIMEOUT" default:"15s"`
	RetryMax       int           `envconfig:"DASH_RETRY_MAX" default:"2"`
	PageLimit      int           `envconfig:"DASH_PAGE_LIMIT" default:"0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	StubAddr    string `envconfig:"STUB_ADDR" default:":4173"`
	StubFixture string `envconfig:"STUB_FIXTURE"`

	location *time.Location
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	base, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("DASH_BASE_URL must be an absolute url, got %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(base.String(), "/")
	c.PathPrefix = dashboard.NormalizePrefix(c.PathPrefix)

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("DASH_TIMEZONE: %w", err)
	}
	c.location = loc

	if c.RetryMax < 0 {
		return fmt.Errorf("DASH_RETRY_MAX must not be negative, got %d", c.RetryMax)
	}
	if c.PageLimit < 0 {
		return fmt.Errorf("DASH_PAGE_LIMIT must not be negative, got %d", c.PageLimit)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Location returns the viewer time zone used for datetime filters.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.Local
	}
	return c.location
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
