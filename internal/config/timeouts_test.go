package config

import (
	"testing"
	"time"
)

// The Messenger Platform retries deliveries that are not acknowledged within 20s.
func TestWebhookAcknowledgementFitsPlatformDeadline(t *testing.T) {
	if WebhookHTTPRead+WebhookHTTPWrite >= 30*time.Second {
		t.Errorf("read+write timeouts %v exceed acknowledgement budget", WebhookHTTPRead+WebhookHTTPWrite)
	}
}

func TestGraphRetryFitsProcessingWindow(t *testing.T) {
	// Three attempts with capped exponential backoff.
	worst := 3*GraphRequest + GraphRetryInitial + 2*GraphRetryInitial
	if worst >= WebhookProcessing {
		t.Errorf("worst-case send %v does not fit WebhookProcessing %v", worst, WebhookProcessing)
	}
	if GraphRetryInitial > GraphRetryMax {
		t.Errorf("GraphRetryInitial %v exceeds GraphRetryMax %v", GraphRetryInitial, GraphRetryMax)
	}
}

func TestBackgroundIntervalsPositive(t *testing.T) {
	for name, d := range map[string]time.Duration{
		"ProfileCleanupInterval":     ProfileCleanupInterval,
		"ProfileCleanupInitialDelay": ProfileCleanupInitialDelay,
		"ArchiveCleanupInterval":     ArchiveCleanupInterval,
		"ArchiveRetention":           ArchiveRetention,
		"ReadinessCheckTimeout":      ReadinessCheckTimeout,
		"MetricsUpdateInterval":      MetricsUpdateInterval,
		"RateLimiterCleanupInterval": RateLimiterCleanupInterval,
		"GracefulShutdown":           GracefulShutdown,
	} {
		if d <= 0 {
			t.Errorf("%s = %v, want positive", name, d)
		}
	}
}
