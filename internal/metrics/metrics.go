// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// Record methods are no-ops on a nil *Metrics so components can run without a registry.
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookQueueDepth      prometheus.Gauge

	// Routing metrics
	EventsTotal        *prometheus.CounterVec
	HearMatchesTotal   *prometheus.CounterVec
	HandlerPanicsTotal *prometheus.CounterVec

	// Session metrics
	ActiveSessions prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec

	// Graph API metrics
	GraphRequestsTotal   *prometheus.CounterVec
	GraphDurationSeconds *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	SingleflightDedupTotal *prometheus.CounterVec
	CacheEntries           *prometheus.GaugeVec

	// Background job metrics
	JobDurationSeconds *prometheus.HistogramVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_webhook_requests_total",
				Help: "Total number of webhook deliveries by status",
			},
			[]string{"status"}, // status: accepted, invalid_signature, invalid_payload, classification_error, overloaded
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "messenger_webhook_duration_seconds",
				Help:    "Webhook handling duration in seconds by stage",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"}, // stage: ack, dispatch
		),

		WebhookQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "messenger_webhook_queue_depth",
				Help: "Number of acknowledged webhook batches waiting for dispatch",
			},
		),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_events_total",
				Help: "Total number of dispatched events by kind and route",
			},
			[]string{"kind", "route"}, // route: session, hear, notify, rate_limited
		),

		HearMatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_hear_matches_total",
				Help: "Total number of hear rule matches",
			},
			[]string{"matcher"}, // matcher: keyword, pattern
		),

		HandlerPanicsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_handler_panics_total",
				Help: "Total number of recovered application handler panics",
			},
			[]string{"component"}, // component: hear, session, hooks
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "messenger_active_sessions",
				Help: "Number of conversations currently registered",
			},
		),

		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_sessions_total",
				Help: "Total number of conversation lifecycle transitions",
			},
			[]string{"transition"}, // transition: started, ended, replaced
		),

		GraphRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_graph_requests_total",
				Help: "Total number of Graph API calls by endpoint and status",
			},
			[]string{"endpoint", "status"}, // status: success, error, retry
		),

		GraphDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "messenger_graph_duration_seconds",
				Help:    "Graph API call duration in seconds by endpoint",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_singleflight_dedup_total",
				Help: "Total number of deduplicated lookups (callers that waited instead of executing)",
			},
			[]string{"module"},
		),

		CacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "messenger_cache_entries",
				Help: "Number of stored entries per cache table",
			},
			[]string{"cache"}, // cache: profile
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "messenger_job_duration_seconds",
				Help:    "Background job run duration",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"job"}, // job: profile_cleanup, archive_cleanup
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"},
		),

		RateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "messenger_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"limiter_type"}, // limiter_type: graph
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_rate_limiter_dropped_total",
				Help: "Total number of events dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user
		),
	}
}

// RecordWebhook records one webhook delivery outcome.
func (m *Metrics) RecordWebhook(status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(status).Inc()
	m.WebhookDurationSeconds.WithLabelValues("ack").Observe(duration)
}

// RecordDispatch records the time spent dispatching one batch.
func (m *Metrics) RecordDispatch(duration float64) {
	if m == nil {
		return
	}
	m.WebhookDurationSeconds.WithLabelValues("dispatch").Observe(duration)
}

// SetQueueDepth sets the number of batches waiting for dispatch.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.WebhookQueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordEvent(kind, route string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind, route).Inc()
}

func (m *Metrics) RecordHearMatch(matcher string) {
	if m == nil {
		return
	}
	m.HearMatchesTotal.WithLabelValues(matcher).Inc()
}

func (m *Metrics) RecordHandlerPanic(component string) {
	if m == nil {
		return
	}
	m.HandlerPanicsTotal.WithLabelValues(component).Inc()
}

// RecordSessionStarted increments the live-session gauge.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues("started").Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded decrements the live-session gauge.
func (m *Metrics) RecordSessionEnded(replaced bool) {
	if m == nil {
		return
	}
	transition := "ended"
	if replaced {
		transition = "replaced"
	}
	m.SessionsTotal.WithLabelValues(transition).Inc()
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordGraphRequest(endpoint, status string, duration float64) {
	if m == nil {
		return
	}
	m.GraphRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.GraphDurationSeconds.WithLabelValues(endpoint).Observe(duration)
}

func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordSingleflightDedup(module string) {
	if m == nil {
		return
	}
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

func (m *Metrics) SetCacheSize(cache string, n int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(cache).Set(float64(n))
}

func (m *Metrics) RecordJob(job string, duration float64) {
	if m == nil {
		return
	}
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}

func (m *Metrics) RecordHTTPError(errorType, module string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	if m == nil {
		return
	}
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}
