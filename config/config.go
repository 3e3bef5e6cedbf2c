/*
Package config loads the server configuration.

PURPOSE:
  YAML file first, environment variables second (env wins), then
  validation. A missing config file is fine - defaults plus env cover
  local development.

PRECEDENCE:
  defaults < config file < environment variables

ENVIRONMENT VARIABLES:
  PORT, DB_PATH, LOG_LEVEL, LOG_FORMAT,
  REDIS_ADDR, SENDGRID_API_KEY, EMAIL_FROM, EMAIL_FROM_NAME

SEE ALSO:
  - cmd/server/main.go: flag overrides on top of this
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Email     EmailConfig     `yaml:"email"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// RateLimitConfig bounds public endpoints per (client, endpoint).
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
}

// SchedulerConfig holds the cron specs for the booking sweeps and how long
// an unpaid pending booking is held before it expires.
type SchedulerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ExpirePendingCron string `yaml:"expire_pending_cron"`
	MarkNoShowsCron  string `yaml:"mark_no_shows_cron"`
	PendingHoldHours int    `yaml:"pending_hold_hours"`
}

// EmailConfig selects the notifier. Empty APIKey means log-only.
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

// RedisConfig enables the shared rate-limit store for multi-instance
// deployments. Empty Addr means the in-process limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "bookings.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			ExpirePendingCron: "0 */15 * * * *",
			MarkNoShowsCron:   "0 0 4 * * *",
			PendingHoldHours:  48,
		},
		Email: EmailConfig{
			FromEmail: "bookings@example.com",
			FromName:  "Reservations",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides and validates.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) overrideWithEnv() {
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Server.Port = port
		}
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		c.Email.FromEmail = val
	}
	if val := os.Getenv("EMAIL_FROM_NAME"); val != "" {
		c.Email.FromName = val
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.PendingHoldHours < 1 {
		return fmt.Errorf("pending_hold_hours must be positive")
	}
	return nil
}
