// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment is the deployment environment named by APP_ENV.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Env            Environment `envconfig:"APP_ENV" default:"development"`
	Port           string      `envconfig:"PORT" default:"8080"`
	FrontendURL    string      `envconfig:"FRONTEND_URL"`
	AllowedOrigins []string    `envconfig:"ALLOWED_ORIGINS" default:"*"`
	LogLevel       string      `envconfig:"LOG_LEVEL" default:"info"`
	DBPath         string      `envconfig:"DB_PATH" default:"./data/triage.db"`
	ContentSeed    string      `envconfig:"CONTENT_SEED_PATH"`
	GRPCHealthAddr string      `envconfig:"GRPC_HEALTH_ADDR"`

	Session   SessionConfig
	Redis     RedisConfig
	Dialogue  DialogueConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// SessionConfig controls conversation state retention.
type SessionConfig struct {
	Backend       string        `envconfig:"BACKEND" default:"memory"`
	TTL           time.Duration `envconfig:"TTL" default:"60m"`
	MaxTurns      int           `envconfig:"MAX_TURNS" default:"20"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

// RedisConfig is used when the session backend is redis.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
}

// DialogueConfig tunes the chat routing.
type DialogueConfig struct {
	ClarifyThreshold float64 `envconfig:"CLARIFY_THRESHOLD" default:"0.4"`
	MaxClarifyLoops  int     `envconfig:"MAX_CLARIFY_LOOPS" default:"3"`
	ContactEmail     string  `envconfig:"CONTACT_EMAIL" default:"hello@ameotech.com"`
}

// NotifyConfig controls sales and escalation notifications.
type NotifyConfig struct {
	WebhookURL string        `envconfig:"SALES_WEBHOOK_URL"`
	QueueSize  int           `envconfig:"QUEUE_SIZE" default:"100"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

// RateLimitConfig bounds chat requests per visitor.
type RateLimitConfig struct {
	Requests int           `envconfig:"REQUESTS" default:"30"`
	Window   time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.Env = Environment(strings.ToLower(strings.TrimSpace(string(cfg.Env))))
	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Session.Backend {
	case SessionBackendMemory:
		if c.Session.SweepInterval <= 0 {
			return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
		}
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q", SessionBackendMemory, SessionBackendRedis)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.MaxTurns <= 0 {
		return fmt.Errorf("SESSION_MAX_TURNS must be > 0")
	}
	if c.Dialogue.ClarifyThreshold <= 0 || c.Dialogue.ClarifyThreshold >= 1 {
		return fmt.Errorf("CLARIFY_THRESHOLD must be between 0 and 1")
	}
	if c.Dialogue.MaxClarifyLoops <= 0 {
		return fmt.Errorf("MAX_CLARIFY_LOOPS must be > 0")
	}
	if !strings.Contains(c.Dialogue.ContactEmail, "@") {
		return fmt.Errorf("CONTACT_EMAIL must be an email address")
	}
	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be > 0")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Level returns the configured log level. Validate guarantees it parses.
func (c *Config) Level() slog.Level {
	l, _ := ParseLogLevel(c.LogLevel)
	return l
}

// ParseLogLevel accepts debug, info, warn and error.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}
