package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
)

func newContextLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewContextHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestContextHandler_AddsTracingValues(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func(context.Context) context.Context
		want   map[string]string
		absent []string
	}{
		{
			name: "all values",
			ctx: func(ctx context.Context) context.Context {
				ctx = ctxutil.WithUserID(ctx, "1254459154682919")
				ctx = ctxutil.WithRequestID(ctx, "req-abc-123")
				return ctxutil.WithEventKind(ctx, "postback")
			},
			want: map[string]string{"user_id": "1254459154682919", "request_id": "req-abc-123", "event_kind": "postback"},
		},
		{
			name:   "user only",
			ctx:    func(ctx context.Context) context.Context { return ctxutil.WithUserID(ctx, "99999") },
			want:   map[string]string{"user_id": "99999"},
			absent: []string{"request_id", "event_kind"},
		},
		{
			name:   "empty values are skipped",
			ctx:    func(ctx context.Context) context.Context { return ctxutil.WithEventKind(ctxutil.WithUserID(ctx, ""), "read") },
			want:   map[string]string{"event_kind": "read"},
			absent: []string{"user_id"},
		},
		{
			name:   "bare context",
			ctx:    func(ctx context.Context) context.Context { return ctx },
			absent: []string{"user_id", "request_id", "event_kind"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newContextLogger(&buf).InfoContext(tt.ctx(context.Background()), "event routed")

			entry := decodeEntry(t, &buf)
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, entry, k)
			}
		})
	}
}

func TestContextHandler_Enabled(t *testing.T) {
	h := NewContextHandler(slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx := context.Background()

	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}

func TestContextHandler_RedactsSecretKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newContextLogger(&buf).With("access_token", "EAAG-page-token")
	log.Info("calling graph", "app_secret", "s3cr3t", "recipient", "U1")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, redacted, entry["access_token"])
	assert.Equal(t, redacted, entry["app_secret"])
	assert.Equal(t, "U1", entry["recipient"])
	assert.NotContains(t, buf.String(), "EAAG-page-token")
	assert.NotContains(t, buf.String(), "s3cr3t")
}

func TestContextHandler_RedactsTokensInStrings(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(`Post "https://graph.facebook.com/v21.0/me/messages?access_token=EAAG123": timeout`)
	newContextLogger(&buf).Warn("send failed",
		"url", "https://graph.facebook.com/me?fields=name&access_token=EAAG123",
		"error", err,
		slog.Group("request", slog.String("query", "hub.verify_token=abc&hub.challenge=1")),
	)

	out := buf.String()
	assert.NotContains(t, out, "EAAG123")
	assert.NotContains(t, out, "verify_token=abc")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "https://graph.facebook.com/me?fields=name&access_token="+redacted, entry["url"])
	assert.Contains(t, entry["error"], "access_token="+redacted)
	assert.Equal(t, "hub.verify_token="+redacted+"&hub.challenge=1", entry["request"].(map[string]any)["query"])
}

func TestContextHandler_WithGroupKeepsTracing(t *testing.T) {
	var buf bytes.Buffer
	log := newContextLogger(&buf).WithGroup("session")
	log.InfoContext(ctxutil.WithUserID(context.Background(), "7001"), "asked", "state", "waiting")

	entry := decodeEntry(t, &buf)
	group, ok := entry["session"].(map[string]any)
	require.True(t, ok, "expected session group in %v", entry)
	assert.Equal(t, "waiting", group["state"])
	assert.Equal(t, "7001", group["user_id"])
}
