package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"SESSION_DIR", "DATA_DIR", "OUTPUT_DIR",
		"REDIS_URL", "APPLICATIONS_DATABASE_URL",
		"RATE_LIMIT_DEFAULT", "RATE_LIMIT_DEFAULT_WINDOW",
		"RATE_LIMIT_SEARCH", "RATE_LIMIT_SEARCH_WINDOW",
		"RATE_LIMIT_LOGIN", "RATE_LIMIT_LOGIN_WINDOW",
		"RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_DELAY", "RETRY_MAX_DELAY",
		"OUTER_RETRY_ATTEMPTS", "REQUEST_TIMEOUT",
		"BROWSER_ENABLED", "WEBDRIVER_URL", "BROWSER_TIMEOUT",
		"AI_PROVIDER", "AI_MODEL",
		"NATS_URL", "NATS_SUBJECT", "HTTP_PORT", "HTTP_ENABLED",
		"SHUTDOWN_GRACE", "JANITOR_SCHEDULE", "LOG_LEVEL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.SessionDir != ".linkedin-agent/sessions" {
		t.Errorf("config:config_test - SessionDir = %q", cfg.SessionDir)
	}
	if cfg.RateLimitDefault != 30 || cfg.RateLimitDefaultWindow != time.Minute {
		t.Errorf("config:config_test - default budget = %d/%v", cfg.RateLimitDefault, cfg.RateLimitDefaultWindow)
	}
	if cfg.RateLimitSearch != 5 || cfg.RateLimitLogin != 3 {
		t.Errorf("config:config_test - search/login budgets = %d/%d", cfg.RateLimitSearch, cfg.RateLimitLogin)
	}
	if cfg.RateLimitLoginWindow != 5*time.Minute {
		t.Errorf("config:config_test - login window = %v", cfg.RateLimitLoginWindow)
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryInitialDelay != 500*time.Millisecond {
		t.Errorf("config:config_test - retry = %d/%v", cfg.RetryMaxAttempts, cfg.RetryInitialDelay)
	}
	if cfg.OuterRetryAttempts != 1 {
		t.Errorf("config:config_test - OuterRetryAttempts = %d, want 1 (disabled)", cfg.OuterRetryAttempts)
	}
	if !cfg.BrowserEnabled || cfg.WebDriverURL == "" {
		t.Errorf("config:config_test - browser = %v %q", cfg.BrowserEnabled, cfg.WebDriverURL)
	}
	if cfg.NATSURL != "" {
		t.Errorf("config:config_test - NATSURL = %q, want empty (transport off)", cfg.NATSURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_SEARCH", "9")
	t.Setenv("SESSION_DIR", "/var/lib/agent/sessions")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("BROWSER_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if cfg.RateLimitSearch != 9 {
		t.Errorf("config:config_test - RateLimitSearch = %d, want 9", cfg.RateLimitSearch)
	}
	if cfg.SessionDir != "/var/lib/agent/sessions" {
		t.Errorf("config:config_test - SessionDir = %q", cfg.SessionDir)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - NATSURL = %q", cfg.NATSURL)
	}
	if cfg.BrowserEnabled {
		t.Error("config:config_test - BrowserEnabled should be false")
	}
}

func TestValidateForServe(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Fatalf("config:config_test - defaults should validate: %v", err)
	}

	bad := *cfg
	bad.RateLimitLogin = 0
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - zero login budget should fail validation")
	}

	bad = *cfg
	bad.RetryMaxAttempts = 0
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - zero retry attempts should fail validation")
	}

	bad = *cfg
	bad.BrowserEnabled = true
	bad.WebDriverURL = ""
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - browser without webdriver URL should fail validation")
	}
}
