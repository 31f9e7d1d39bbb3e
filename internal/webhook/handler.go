// Package webhook implements the Messenger webhook endpoints: the subscription
// handshake and the signed event notifications, which are acknowledged
// immediately and dispatched in order on a background worker.
package webhook

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/messenger-bot-go/internal/config"
	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// maxBodyBytes caps the notification body read into memory.
const maxBodyBytes = 4 << 20

var (
	// ErrHandlerClosed is returned by Enqueue after Shutdown.
	ErrHandlerClosed = stderrors.New("webhook handler closed")
	// ErrQueueFull is returned by Enqueue when the dispatch backlog is full.
	ErrQueueFull = stderrors.New("webhook queue full")
)

// Dispatcher classifies notifications and routes their events.
type Dispatcher interface {
	Classify(env *event.Envelope) ([]event.Event, error)
	Dispatch(ctx context.Context, events []event.Event)
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	VerifyToken string
	// AppSecret enables signature verification when set.
	AppSecret  string
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

type batch struct {
	id       string
	events   []event.Event
	received time.Time
}

// Handler serves GET and POST /webhook.
type Handler struct {
	verifyToken string
	appSecret   string
	dispatcher  Dispatcher
	metrics     *metrics.Metrics
	logger      *logger.Logger

	webhookTimeout time.Duration
	maxEvents      int
	queueSize      int

	mu     sync.RWMutex
	closed bool
	queue  chan batch
	done   chan struct{}
}

// NewHandler creates a webhook handler and starts its dispatch worker.
func NewHandler(cfg HandlerConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifyToken:    cfg.VerifyToken,
		appSecret:      cfg.AppSecret,
		dispatcher:     cfg.Dispatcher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.WithModule("webhook"),
		webhookTimeout: config.WebhookProcessing,
		maxEvents:      1000,
		queueSize:      256,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.queue = make(chan batch, h.queueSize)

	go h.worker()
	return h
}

// Verify answers the subscription handshake.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")

	if h.verifyToken == "" || mode != "subscribe" || token != h.verifyToken {
		h.logger.Warn("Webhook verification failed", "mode", mode)
		c.Status(http.StatusForbidden)
		return
	}

	h.logger.Info("Webhook subscription verified")
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// Handle accepts one event notification.
func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()
	requestID := uuid.NewString()
	log := h.logger.WithRequestID(requestID)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		log.WithError(err).Warn("Failed to read webhook body")
		h.reply(c, http.StatusBadRequest, "read_error", start)
		return
	}
	if len(body) > maxBodyBytes {
		log.WithField("limit", maxBodyBytes).Warn("Webhook body too large")
		h.reply(c, http.StatusRequestEntityTooLarge, "too_large", start)
		return
	}

	if h.appSecret != "" {
		if err := VerifySignature(h.appSecret, body,
			c.GetHeader(HeaderSignature256), c.GetHeader(HeaderSignature)); err != nil {
			log.WithError(err).Warn("Invalid webhook signature")
			h.reply(c, http.StatusForbidden, "invalid_signature", start)
			return
		}
	}

	env, err := event.Decode(body)
	if err != nil {
		log.WithError(err).Warn("Malformed webhook body")
		h.reply(c, http.StatusBadRequest, "malformed", start)
		return
	}
	if env.Object != "page" {
		log.WithField("object", env.Object).Warn("Webhook notification is not for a page")
		h.reply(c, http.StatusBadRequest, "not_page", start)
		return
	}

	events, err := h.dispatcher.Classify(env)
	if err != nil {
		h.metrics.RecordHTTPError("classification", "webhook")
		sentry.CaptureException(ctxutil.WithRequestID(c.Request.Context(), requestID), err)
		h.reply(c, http.StatusInternalServerError, "classification_error", start)
		return
	}
	if len(events) > h.maxEvents {
		log.WithField("event_count", len(events)).
			WithField("limit", h.maxEvents).
			Warn("Too many events in webhook batch")
		h.reply(c, http.StatusRequestEntityTooLarge, "too_many_events", start)
		return
	}

	if err := h.Enqueue(requestID, events); err != nil {
		log.WithError(err).Warn("Webhook batch not accepted")
		h.reply(c, http.StatusServiceUnavailable, "busy", start)
		return
	}

	log.WithField("event_count", len(events)).Debug("Webhook batch accepted")
	h.reply(c, http.StatusOK, "accepted", start)
}

func (h *Handler) reply(c *gin.Context, code int, status string, start time.Time) {
	h.metrics.RecordWebhook(status, time.Since(start).Seconds())
	c.Status(code)
}

// Enqueue hands a classified batch to the dispatch worker without blocking.
func (h *Handler) Enqueue(id string, events []event.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHandlerClosed
	}

	select {
	case h.queue <- batch{id: id, events: events, received: time.Now()}:
		h.metrics.SetQueueDepth(len(h.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *Handler) worker() {
	defer close(h.done)
	for b := range h.queue {
		h.metrics.SetQueueDepth(len(h.queue))
		h.process(b)
	}
}

func (h *Handler) process(b batch) {
	ctx := ctxutil.WithRequestID(context.Background(), b.id)
	ctx, cancel := context.WithTimeout(ctx, h.webhookTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.metrics.RecordHandlerPanic("webhook")
			sentry.CapturePanic(ctx, "webhook", r)
			h.logger.WithRequestID(b.id).WithField("panic", r).Error("Panic in async event processing")
		}
	}()

	start := time.Now()
	h.dispatcher.Dispatch(ctx, b.events)

	h.logger.WithRequestID(b.id).
		WithField("event_count", len(b.events)).
		WithField("dispatch_ms", time.Since(start).Milliseconds()).
		WithField("queued_ms", start.Sub(b.received).Milliseconds()).
		Info("Webhook batch processed")
}

// Shutdown stops accepting batches and waits for queued ones to finish.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
