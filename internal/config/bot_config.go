package config

import (
	"errors"
	"fmt"
	"time"
)

// Session policies for users that already have an active conversation.
const (
	SessionPolicyConcurrent = "concurrent"
	SessionPolicyReplace    = "replace"
)

// Graph API defaults.
const (
	DefaultGraphAPIURL     = "https://graph.facebook.com"
	DefaultGraphAPIVersion = "v21.0"
)

// BotConfig holds routing and rate limiting configuration.
type BotConfig struct {
	WebhookTimeout      time.Duration // Per-batch dispatch timeout (see timeouts.go)
	MaxEventsPerWebhook int           // Batches above this size are rejected
	WebhookQueueSize    int           // Buffered batches awaiting dispatch

	// BroadcastEchoes keeps is_echo messages instead of dropping them.
	BroadcastEchoes bool
	// SessionPolicy is SessionPolicyConcurrent or SessionPolicyReplace.
	SessionPolicy string

	// Rate Limits (Token Bucket Algorithm)
	UserRateLimitBurst        float64 // Maximum burst events per user (default: 30)
	UserRateLimitRefillPerSec float64 // Events refilled per second (default: 1)
	GlobalRateLimitRPS        float64 // Outbound Graph API calls per second (default: 200)
}

// LoadBotConfig reads bot configuration from the environment.
func LoadBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:            getDurationEnv(EnvWebhookTimeout, WebhookProcessing),
		MaxEventsPerWebhook:       getIntEnv(EnvMaxEventsPerWebhook, 1000),
		WebhookQueueSize:          getIntEnv(EnvWebhookQueueSize, 256),
		BroadcastEchoes:           getBoolEnv(EnvBroadcastEchoes, false),
		SessionPolicy:             getEnv(EnvSessionPolicy, SessionPolicyConcurrent),
		UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, 30),
		UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, 1),
		GlobalRateLimitRPS:        getFloatEnv(EnvGlobalRateRPS, 200),
	}
}

// Validate checks the bot configuration values.
func (c BotConfig) Validate() error {
	var errs []error

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvWebhookTimeout, c.WebhookTimeout))
	}
	if c.MaxEventsPerWebhook <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMaxEventsPerWebhook, c.MaxEventsPerWebhook))
	}
	if c.WebhookQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvWebhookQueueSize, c.WebhookQueueSize))
	}
	switch c.SessionPolicy {
	case SessionPolicyConcurrent, SessionPolicyReplace:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q",
			EnvSessionPolicy, SessionPolicyConcurrent, SessionPolicyReplace, c.SessionPolicy))
	}
	if c.UserRateLimitBurst <= 0 || c.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvGlobalRateRPS, c.GlobalRateLimitRPS))
	}

	return errors.Join(errs...)
}
