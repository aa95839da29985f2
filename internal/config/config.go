// Package config loads and validates the service configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/Agamista0/ava-support-backend/pkg/config"
	"github.com/Agamista0/ava-support-backend/pkg/database"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

const placeholderSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the support backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ava"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ava_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"ava_support"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (blacklist verdict cache)
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisCacheTTL time.Duration `env:"BLACKLIST_CACHE_TTL" envDefault:"30s"`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"ava-support-backend"`
	JWTAudience      string        `env:"JWT_AUDIENCE" envDefault:"ava-app"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Kafka (optional; event fan-out is disabled when unset)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenAI (optional; support classification and transcription are
	// disabled when unset)
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Issue tracker (optional; support requests are disabled when unset)
	TrackerURL     string `env:"TRACKER_URL"`
	TrackerToken   string `env:"TRACKER_TOKEN"`
	TrackerProject string `env:"TRACKER_PROJECT" envDefault:"SUP"`

	// Payments
	WebhookSecret      string `env:"PAYMENT_WEBHOOK_SECRET"`
	CheckoutBaseURL    string `env:"CHECKOUT_BASE_URL"`
	SupportRequestCost int    `env:"SUPPORT_REQUEST_COST" envDefault:"1"`

	// Rate limiting on the auth route group
	AuthRateLimit int `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst int `env:"AUTH_RATE_BURST" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables and validates it. All
// problems are reported at once so a misconfigured deployment fails with a
// complete list instead of one error per restart.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var problems []string

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("HTTP_PORT: invalid port %d", cfg.HTTPPort))
	}

	if cfg.Environment != "development" {
		if cfg.JWTSecret == placeholderSecret {
			problems = append(problems, "JWT_SECRET: must be explicitly set outside development")
		}
		if len(cfg.JWTSecret) < 32 {
			problems = append(problems, fmt.Sprintf("JWT_SECRET: must be at least 32 characters, got %d", len(cfg.JWTSecret)))
		}
		if cfg.WebhookSecret == "" {
			problems = append(problems, "PAYMENT_WEBHOOK_SECRET: must be set outside development")
		}
	}

	if cfg.JWTAccessExpiry <= 0 {
		problems = append(problems, "JWT_ACCESS_TOKEN_EXPIRY: must be positive")
	}
	if cfg.JWTRefreshExpiry <= cfg.JWTAccessExpiry {
		problems = append(problems, "JWT_REFRESH_TOKEN_EXPIRY: must exceed the access token expiry")
	}

	if (cfg.TrackerURL == "") != (cfg.TrackerToken == "") {
		problems = append(problems, "TRACKER_URL and TRACKER_TOKEN: set both or neither")
	}

	if len(problems) > 0 {
		return nil, errors.New("invalid configuration:\n  " + strings.Join(problems, "\n  "))
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisConfig returns the Redis connection settings.
func (c *Config) RedisConfig() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// SupportEnabled reports whether the LLM-backed support surface can run.
func (c *Config) SupportEnabled() bool {
	return c.OpenAIKey != "" && c.TrackerURL != ""
}

// TranscriptionEnabled reports whether audio transcription can run.
func (c *Config) TranscriptionEnabled() bool {
	return c.OpenAIKey != ""
}

// EventsEnabled reports whether the Kafka event fan-out is configured.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Plans returns the subscription plan catalog. The catalog is code-defined;
// prices and allotments change with a deploy, not a migration.
func (c *Config) Plans() []domain.Plan {
	return []domain.Plan{
		{ID: "starter", Name: "Starter", Credits: 50, PriceCents: 900, Currency: "USD", IntervalDays: 30},
		{ID: "pro", Name: "Pro", Credits: 200, PriceCents: 2900, Currency: "USD", IntervalDays: 30},
		{ID: "team", Name: "Team", Credits: 1000, PriceCents: 9900, Currency: "USD", IntervalDays: 30},
	}
}
