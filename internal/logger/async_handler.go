package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncBufferSize   = 1024
	defaultAsyncFlushTimeout = 5 * time.Second
)

// AsyncOptions configures remote log shipping.
type AsyncOptions struct {
	// BufferSize is how many records may wait for the shipper. Records beyond
	// it are dropped and counted.
	BufferSize   int
	FlushTimeout time.Duration
}

type queuedRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// shipQueue is the single goroutine shared by an AsyncHandler and every
// handler derived from it with WithAttrs or WithGroup.
type shipQueue struct {
	records      chan queuedRecord
	done         chan struct{}
	flushTimeout time.Duration

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Uint64
}

func newShipQueue(opts AsyncOptions) *shipQueue {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultAsyncBufferSize
	}
	timeout := opts.FlushTimeout
	if timeout <= 0 {
		timeout = defaultAsyncFlushTimeout
	}

	q := &shipQueue{
		records:      make(chan queuedRecord, size),
		done:         make(chan struct{}),
		flushTimeout: timeout,
	}
	go q.drain()
	return q
}

func (q *shipQueue) drain() {
	defer close(q.done)
	for rec := range q.records {
		// Shipping errors have nowhere useful to go; stdout already has the record.
		_ = rec.handler.Handle(rec.ctx, rec.record)
	}
}

func (q *shipQueue) push(rec queuedRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.records <- rec:
	default:
		q.dropped.Add(1)
	}
}

func (q *shipQueue) close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.records)
		q.mu.Unlock()
	})

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler hands records to a background shipper so a slow remote sink
// never delays webhook dispatch.
type AsyncHandler struct {
	queue   *shipQueue
	handler slog.Handler
}

// NewAsyncHandler starts the shipper goroutine for handler.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{queue: newShipQueue(opts), handler: handler}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle queues a clone of r. It never blocks and never fails.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.handler.Enabled(ctx, r.Level) {
		h.queue.push(queuedRecord{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler})
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithAttrs(attrs)}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithGroup(name)}
}

// Dropped reports how many records were discarded because the buffer was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.queue == nil {
		return 0
	}
	return h.queue.dropped.Load()
}

// Shutdown stops accepting records and waits for queued ones to be shipped,
// bounded by ctx or, without a deadline, by the flush timeout. Later records
// are discarded.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.queue == nil {
		return nil
	}
	return h.queue.close(ctx)
}
