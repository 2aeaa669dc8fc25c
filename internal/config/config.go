// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Completion providers.
const (
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Storage backend: "local" (embedded file) or "remote" (PostgreSQL + Redis)
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"local"`
	LocalDBPath   string `env:"LOCAL_DB_PATH" envDefault:"data/bytebuddy.db"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Sessions
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// DemoResetCodes returns password reset codes in API responses.
	// Empty means "on for the local backend only".
	DemoResetCodes string `env:"DEMO_RESET_CODES"`

	// Completion service
	CompletionProvider string        `env:"COMPLETION_PROVIDER" envDefault:"openai"`
	CompletionAPIKey   string        `env:"COMPLETION_API_KEY"`
	CompletionBaseURL  string        `env:"COMPLETION_BASE_URL"`
	CompletionModel    string        `env:"COMPLETION_MODEL"`
	CompletionTimeout  time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	TitleTimeout       time.Duration `env:"TITLE_TIMEOUT" envDefault:"20s"`

	// Outbound mail for password reset codes (optional)
	MailerURL    string `env:"MAILER_URL"`
	MailerAPIKey string `env:"MAILER_API_KEY"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for the unauthenticated auth endpoints
	RateLimitEnabled   bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitAuthRPS   int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"1"`
	RateLimitAuthBurst int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// devSigningKey is used only when APP_ENV=development and no key is set.
const devSigningKey = "bytebuddy-development-signing-key"

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsRemote reports whether the remote (PostgreSQL + Redis) backend is selected.
func (c *Config) IsRemote() bool {
	return c.StoreBackend == BackendRemote
}

// ReturnResetCodes reports whether reset codes are echoed back to the caller.
func (c *Config) ReturnResetCodes() bool {
	if v, err := strconv.ParseBool(c.DemoResetCodes); err == nil {
		return v
	}
	return c.StoreBackend == BackendLocal
}

// SigningKey returns the session signing key, falling back to a fixed key in development.
func (c *Config) SigningKey() []byte {
	if c.SessionSigningKey == "" && c.IsDevelopment() {
		return []byte(devSigningKey)
	}
	return []byte(c.SessionSigningKey)
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks combinations that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendLocal:
		if c.LocalDBPath == "" {
			errs = append(errs, errors.New("LOCAL_DB_PATH is required for the local backend"))
		}
	case BackendRemote:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the remote backend"))
		}
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.CompletionProvider {
	case ProviderOpenAI, ProviderPerplexity:
	default:
		errs = append(errs, fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.CompletionProvider))
	}

	if c.SessionSigningKey == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY is required outside development"))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
