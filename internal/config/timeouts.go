// Package config provides centralized timeout constants for the application.
//
// The Messenger Platform expects a 200 OK for every webhook delivery within
// 20 seconds and retries deliveries that time out, so requests are acknowledged
// before dispatch and dispatch runs under its own deadline.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing bounds the dispatch of one webhook batch, including
	// every handler it triggers and the Send API calls they make.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Graph API timeouts
const (
	// GraphRequest is the timeout for a single Send API or Profile API call.
	GraphRequest = 10 * time.Second

	// GraphRetryInitial is the initial delay before retrying a transient failure.
	// Uses exponential backoff: 500ms -> 1s -> 2s
	GraphRetryInitial = 500 * time.Millisecond

	// GraphRetryMax caps a single backoff delay.
	GraphRetryMax = 5 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 5 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// ProfileCleanupInterval is how often expired profile cache entries are deleted.
	ProfileCleanupInterval = 6 * time.Hour

	// ProfileCleanupInitialDelay is the delay before the first cleanup.
	ProfileCleanupInitialDelay = 5 * time.Minute

	// ArchiveCleanupInterval is how often old session archive records are deleted.
	ArchiveCleanupInterval = 24 * time.Hour

	// ArchiveRetention is how long ended sessions stay in the archive.
	ArchiveRetention = 30 * 24 * time.Hour

	// MetricsUpdateInterval is how often cache size metrics are updated.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Health check timeouts
const (
	// ReadinessCheckTimeout bounds the database ping of /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight requests and queued webhook batches to complete.
	GracefulShutdown = 30 * time.Second
)
