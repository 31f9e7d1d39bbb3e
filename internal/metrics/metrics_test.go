package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	require.NotNil(t, m)

	// Touch the vectors so they appear in Gather output.
	m.RecordWebhook("accepted", 0.01)
	m.RecordDispatch(0.2)
	m.RecordEvent("message", "hear")
	m.RecordHearMatch("keyword")
	m.RecordHandlerPanic("hear")
	m.RecordSessionStarted()
	m.RecordGraphRequest("messages", "success", 0.1)
	m.RecordCacheHit("profile")
	m.RecordCacheMiss("profile")
	m.RecordSingleflightDedup("profile")
	m.RecordHTTPError("invalid_signature", "webhook")
	m.RecordRateLimiterWait("graph", 0.001)
	m.RecordRateLimiterDrop("user")
	m.SetQueueDepth(2)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 16)
}

func TestSessionGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionEnded(false)
	m.RecordSessionStarted()
	m.RecordSessionEnded(true)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ActiveSessions), 0.0001)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("started")), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("replaced")), 0.0001)
}

func TestRecordEvent(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordEvent("postback", "session")
	m.RecordEvent("postback", "session")
	m.RecordEvent("postback", "notify")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("postback", "session")), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("postback", "notify")), 0.0001)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWebhook("accepted", 0)
		m.RecordEvent("read", "notify")
		m.RecordSessionStarted()
		m.RecordSessionEnded(false)
		m.RecordGraphRequest("messages", "error", 0)
		m.RecordRateLimiterDrop("user")
		m.SetQueueDepth(0)
	})
}
