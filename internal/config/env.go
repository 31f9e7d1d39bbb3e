// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvPageAccessToken = "MESSENGER_PAGE_ACCESS_TOKEN"
	EnvVerifyToken     = "MESSENGER_VERIFY_TOKEN"
	EnvAppSecret       = "MESSENGER_APP_SECRET"

	// Graph API
	EnvGraphAPIURL     = "MESSENGER_GRAPH_API_URL"
	EnvGraphAPIVersion = "MESSENGER_GRAPH_API_VERSION"
	EnvSendMaxRetries  = "MESSENGER_SEND_MAX_RETRIES"

	// Server
	EnvPort            = "MESSENGER_PORT"
	EnvLogLevel        = "MESSENGER_LOG_LEVEL"
	EnvShutdownTimeout = "MESSENGER_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir         = "MESSENGER_DATA_DIR"
	EnvProfileCacheTTL = "MESSENGER_PROFILE_CACHE_TTL"
	EnvScriptPath      = "MESSENGER_SCRIPT_PATH"

	// Routing
	EnvBroadcastEchoes     = "MESSENGER_BROADCAST_ECHOES"
	EnvSessionPolicy       = "MESSENGER_SESSION_POLICY"
	EnvWebhookTimeout      = "MESSENGER_WEBHOOK_TIMEOUT"
	EnvMaxEventsPerWebhook = "MESSENGER_MAX_EVENTS_PER_WEBHOOK"
	EnvWebhookQueueSize    = "MESSENGER_WEBHOOK_QUEUE_SIZE"

	// Rate Limits
	EnvGlobalRateRPS  = "MESSENGER_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "MESSENGER_USER_RATE_BURST"
	EnvUserRateRefill = "MESSENGER_USER_RATE_REFILL"

	// Sentry Feature
	EnvSentryEnabled     = "MESSENGER_SENTRY_ENABLED"
	EnvSentryDSN         = "MESSENGER_SENTRY_DSN"
	EnvSentryEnvironment = "MESSENGER_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "MESSENGER_SENTRY_RELEASE"
	EnvSentrySampleRate  = "MESSENGER_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "MESSENGER_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "MESSENGER_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "MESSENGER_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "MESSENGER_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "MESSENGER_METRICS_USERNAME"
	EnvMetricsPassword    = "MESSENGER_METRICS_PASSWORD"
)
