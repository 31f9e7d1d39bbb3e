package messenger

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// ErrOutboxClosed is returned by an Outbox after Close.
var ErrOutboxClosed = stderrors.New("outbox closed")

// Outbox is a Sender that defers delivery to background workers so event
// dispatch never waits on the Graph API or a typing indicator.
// Sends to the same recipient are delivered in the order they were queued;
// there is no ordering between recipients.
type Outbox struct {
	next    Sender
	log     *logger.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	queues map[string]*outboxQueue
	closed bool
	wg     sync.WaitGroup
}

type outboxQueue struct {
	jobs []func()
}

// NewOutbox wraps next.
func NewOutbox(next Sender, log *logger.Logger, m *metrics.Metrics) *Outbox {
	return &Outbox{
		next:    next,
		log:     log.WithModule("outbox"),
		metrics: m,
		queues:  make(map[string]*outboxQueue),
	}
}

// Send queues msg and returns immediately with a nil result.
// Delivery errors are logged.
func (o *Outbox) Send(ctx context.Context, to Recipient, msg Message, opts SendOptions) (*SendResult, error) {
	ctx = ctxutil.PreserveTracing(ctx)
	return nil, o.enqueue(to, func() {
		if _, err := o.next.Send(ctx, to, msg, opts); err != nil {
			o.log.WithError(err).ErrorContext(ctx, "deferred send failed")
		}
	})
}

// SendAction queues a sender action.
func (o *Outbox) SendAction(ctx context.Context, to Recipient, action Action) error {
	ctx = ctxutil.PreserveTracing(ctx)
	return o.enqueue(to, func() {
		if err := o.next.SendAction(ctx, to, action); err != nil {
			o.log.WithError(err).WarnContext(ctx, "deferred sender action failed", "action", string(action))
		}
	})
}

// TypingIndicator queues the whole typing sequence so the wait happens on
// the recipient's worker.
func (o *Outbox) TypingIndicator(ctx context.Context, to Recipient, d time.Duration) error {
	ctx = ctxutil.PreserveTracing(ctx)
	return o.enqueue(to, func() {
		if err := TypingIndicator(ctx, o.next, to, d); err != nil {
			o.log.WithError(err).WarnContext(ctx, "deferred typing indicator failed")
		}
	})
}

func (o *Outbox) enqueue(to Recipient, job func()) error {
	key := to.ID
	if key == "" {
		key = "ref:" + to.UserRef
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutboxClosed
	}

	q, running := o.queues[key]
	if !running {
		q = &outboxQueue{}
		o.queues[key] = q
		o.wg.Go(func() { o.drain(key, q) })
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (o *Outbox) drain(key string, q *outboxQueue) {
	for {
		o.mu.Lock()
		if len(q.jobs) == 0 {
			delete(o.queues, key)
			o.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		o.mu.Unlock()

		o.run(job)
	}
}

func (o *Outbox) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.RecordHandlerPanic("outbox")
			sentry.CapturePanic(context.Background(), "outbox", r)
			o.log.Error("deferred send panicked", "panic", r)
		}
	}()
	job()
}

// Pending returns the number of recipients with queued sends.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queues)
}

// Close stops accepting sends and waits for queued ones to finish.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
