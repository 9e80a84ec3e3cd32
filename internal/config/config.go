// Package config provides agent configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds linkedin-agent configuration.
type Config struct {
	// Storage directories.
	SessionDir string `envconfig:"SESSION_DIR" default:".linkedin-agent/sessions"`
	DataDir    string `envconfig:"DATA_DIR" default:".linkedin-agent/data"`
	OutputDir  string `envconfig:"OUTPUT_DIR" default:".linkedin-agent/documents"`

	// Optional store backends. Empty keeps the file drivers.
	RedisURL                string `envconfig:"REDIS_URL"`
	ApplicationsDatabaseURL string `envconfig:"APPLICATIONS_DATABASE_URL"`

	// Rate limit budgets.
	RateLimitDefault       int           `envconfig:"RATE_LIMIT_DEFAULT" default:"30"`
	RateLimitDefaultWindow time.Duration `envconfig:"RATE_LIMIT_DEFAULT_WINDOW" default:"1m"`
	RateLimitSearch        int           `envconfig:"RATE_LIMIT_SEARCH" default:"5"`
	RateLimitSearchWindow  time.Duration `envconfig:"RATE_LIMIT_SEARCH_WINDOW" default:"1m"`
	RateLimitLogin         int           `envconfig:"RATE_LIMIT_LOGIN" default:"3"`
	RateLimitLoginWindow   time.Duration `envconfig:"RATE_LIMIT_LOGIN_WINDOW" default:"5m"`

	// Retry caps.
	RetryMaxAttempts  int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"500ms"`
	RetryMaxDelay     time.Duration `envconfig:"RETRY_MAX_DELAY" default:"60s"`
	// OuterRetryAttempts enables dispatcher-level retry when > 1.
	OuterRetryAttempts int `envconfig:"OUTER_RETRY_ATTEMPTS" default:"1"`

	// Upstream access.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	BrowserEnabled bool          `envconfig:"BROWSER_ENABLED" default:"true"`
	WebDriverURL   string        `envconfig:"WEBDRIVER_URL" default:"http://127.0.0.1:4444/wd/hub"`
	BrowserTimeout time.Duration `envconfig:"BROWSER_TIMEOUT" default:"30s"`

	// AI provider for document generation ("openai" or "googleai"). Empty
	// disables the model and falls back to profile-derived content.
	AIProvider string `envconfig:"AI_PROVIDER"`
	AIModel    string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`

	// Transports. Stdio is always on; NATS is enabled by NATS_URL.
	NATSURL     string `envconfig:"NATS_URL"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"linkedin.agent.requests"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	HTTPEnabled bool   `envconfig:"HTTP_ENABLED" default:"false"`

	// Lifecycle.
	ShutdownGrace   time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
	JanitorSchedule string        `envconfig:"JANITOR_SCHEDULE" default:"0 * * * *"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the agent.
func (c *Config) ValidateForServe() error {
	if c.SessionDir == "" {
		return fmt.Errorf("%s - SESSION_DIR is required", logPrefix)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%s - DATA_DIR is required", logPrefix)
	}
	if c.RateLimitDefault <= 0 || c.RateLimitSearch <= 0 || c.RateLimitLogin <= 0 {
		return fmt.Errorf("%s - rate limit budgets must be positive", logPrefix)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("%s - RETRY_MAX_ATTEMPTS must be positive", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.BrowserEnabled && c.WebDriverURL == "" {
		return fmt.Errorf("%s - WEBDRIVER_URL is required when BROWSER_ENABLED", logPrefix)
	}
	return nil
}
