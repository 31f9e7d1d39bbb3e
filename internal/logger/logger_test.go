package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	return entry
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warning"},
		{"WARNING", "warning"},
		{"error", "error"},
		{"invalid", "info"},
		{"", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(tt.level)
			require.NotNil(t, log)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Warn("webhook rejected")

	entry := decodeLine(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		assert.Contains(t, entry, field)
	}
	assert.Equal(t, "webhook rejected", entry["message"])
	assert.Equal(t, "warning", entry["level"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("session").
		WithRequestID("req-123").
		WithError(errors.New("send failed")).
		WithFields(map[string]any{"question_id": "q-1"}).
		Error("ask failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "session", entry["module"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "send failed", entry["error"])
	assert.Equal(t, "q-1", entry["question_id"])
}

func TestLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ctxutil.WithUserID(context.Background(), "1254459154682919")
	ctx = ctxutil.WithEventKind(ctx, "message")
	log.InfoContext(ctx, "dispatching")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "1254459154682919", entry["user_id"])
	assert.Equal(t, "message", entry["event_kind"])
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	child := log.WithModule("bot")

	child.Debug("hidden")
	assert.Zero(t, buf.Len())

	require.NoError(t, log.SetLevel("debug"))
	assert.Equal(t, "debug", child.GetLevel())

	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	assert.Error(t, log.SetLevel("verbose"))
}

func TestLogger_ShutdownWithoutRemote(t *testing.T) {
	log := New("info")
	assert.NoError(t, log.Shutdown(context.Background()))
}
