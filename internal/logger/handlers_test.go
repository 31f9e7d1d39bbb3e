package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingHandler accepts every record and always fails.
type failingHandler struct{ slog.Handler }

func (h *failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("remote sink down")
}

// lockedBuffer is a bytes.Buffer safe for the async worker goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Count(sub string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Count(b.buf.Bytes(), []byte(sub))
}

func TestMultiHandler_FansOutAndFilters(t *testing.T) {
	t.Parallel()

	var debugBuf, errorBuf bytes.Buffer
	mh := NewMultiHandler(
		nil,
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	require.Len(t, mh.handlers, 2)
	assert.True(t, mh.Enabled(context.Background(), slog.LevelDebug))

	slog.New(mh).Info("event routed", "kind", "postback")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(debugBuf.Bytes(), &entry))
	assert.Equal(t, "event routed", entry["msg"])
	assert.Equal(t, "postback", entry["kind"])
	assert.Zero(t, errorBuf.Len(), "error-level handler must not receive info records")
}

func TestMultiHandler_WithGroupAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mh := NewMultiHandler(slog.NewJSONHandler(&buf, nil))
	h := mh.WithGroup("session").WithAttrs([]slog.Attr{slog.String("state", "waiting")})

	slog.New(h).Info("asked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	group, ok := entry["session"].(map[string]any)
	require.True(t, ok, "expected session group in %v", entry)
	assert.Equal(t, "waiting", group["state"])
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mh := NewMultiHandler(slog.NewJSONHandler(&buf, nil), &failingHandler{})

	err := mh.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote sink down")
	assert.NotZero(t, buf.Len(), "healthy handler should still write")
}

func TestAsyncHandler_FlushesOnShutdown(t *testing.T) {
	t.Parallel()

	var out lockedBuffer
	async := NewAsyncHandler(slog.NewJSONHandler(&out, nil), AsyncOptions{BufferSize: 256})
	log := slog.New(async)

	for i := range 50 {
		log.Info("queued record", "i", i)
	}

	require.NoError(t, async.Shutdown(context.Background()))
	assert.Equal(t, 50, out.Count("queued record"))

	// Records after shutdown are ignored.
	log.Info("late record")
	assert.Zero(t, out.Count("late record"))
	assert.NoError(t, async.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestAsyncHandler_NilShutdown(t *testing.T) {
	t.Parallel()

	var h *AsyncHandler
	assert.NoError(t, h.Shutdown(context.Background()))
}

// blockingHandler holds the shipper until release is closed.
type blockingHandler struct {
	slog.Handler
	release chan struct{}
}

func (h *blockingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *blockingHandler) Handle(context.Context, slog.Record) error {
	<-h.release
	return nil
}

func TestAsyncHandler_CountsDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := &blockingHandler{release: make(chan struct{})}
	async := NewAsyncHandler(sink, AsyncOptions{BufferSize: 1})
	log := slog.New(async)

	// At most one record is held by the shipper and one by the buffer.
	for i := range 100 {
		log.Info("flood", "i", i)
	}
	assert.GreaterOrEqual(t, async.Dropped(), uint64(98))

	close(sink.release)
	require.NoError(t, async.Shutdown(context.Background()))
	var nilHandler *AsyncHandler
	assert.Zero(t, nilHandler.Dropped())
}
