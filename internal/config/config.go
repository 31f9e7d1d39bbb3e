// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// the webhook server, the Graph API client, storage and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Messenger Platform credentials
	PageAccessToken string
	VerifyToken     string
	AppSecret       string // Empty disables X-Hub-Signature verification

	// Graph API
	GraphAPIURL     string
	GraphAPIVersion string
	SendMaxRetries  int

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir         string        // Data directory for SQLite database
	ProfileCacheTTL time.Duration // Absolute expiration for cached user profiles
	ScriptPath      string        // Optional YAML hear-rule script

	// Sentry
	SentryEnabled     bool
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64

	// Better Stack log shipping
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics and admin endpoint authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string

	Bot BotConfig
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	cfg := read()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadGraph reads the configuration for tools that only call the Graph API.
// Only the page access token is required.
func LoadGraph() (*Config, error) {
	cfg := read()
	if cfg.PageAccessToken == "" {
		return nil, fmt.Errorf("%s is required", EnvPageAccessToken)
	}
	if cfg.GraphAPIURL == "" {
		return nil, fmt.Errorf("%s is required", EnvGraphAPIURL)
	}
	return cfg, nil
}

func read() *Config {
	_ = godotenv.Load()

	return &Config{
		PageAccessToken: getEnv(EnvPageAccessToken, ""),
		VerifyToken:     getEnv(EnvVerifyToken, ""),
		AppSecret:       getEnv(EnvAppSecret, ""),

		GraphAPIURL:     getEnv(EnvGraphAPIURL, DefaultGraphAPIURL),
		GraphAPIVersion: getEnv(EnvGraphAPIVersion, DefaultGraphAPIVersion),
		SendMaxRetries:  getIntEnv(EnvSendMaxRetries, 3),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:         getEnv(EnvDataDir, getDefaultDataDir()),
		ProfileCacheTTL: getDurationEnv(EnvProfileCacheTTL, 24*time.Hour),
		ScriptPath:      getEnv(EnvScriptPath, ""),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),

		Bot: LoadBotConfig(),
	}
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.PageAccessToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPageAccessToken))
	}
	if c.VerifyToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvVerifyToken))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.GraphAPIURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvGraphAPIURL))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.ProfileCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvProfileCacheTTL, c.ProfileCacheTTL))
	}
	if c.SendMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvSendMaxRetries, c.SendMaxRetries))
	}
	if c.SentryEnabled && c.SentryDSN == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s=true", EnvSentryDSN, EnvSentryEnabled))
	}
	if c.BetterStackEnabled && c.BetterStackToken == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s=true", EnvBetterStackToken, EnvBetterStackEnabled))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s=true", EnvMetricsPassword, EnvMetricsAuthEnabled))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GraphBaseURL returns the versioned Graph API root, e.g. https://graph.facebook.com/v21.0.
func (c *Config) GraphBaseURL() string {
	base := strings.TrimRight(c.GraphAPIURL, "/")
	if c.GraphAPIVersion == "" {
		return base
	}
	return base + "/" + strings.Trim(c.GraphAPIVersion, "/")
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "messenger.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
