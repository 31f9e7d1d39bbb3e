package webhook

import (
	"time"

	"github.com/garyellow/messenger-bot-go/internal/config"
)

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithBotConfig applies the webhook limits from the bot configuration.
func WithBotConfig(cfg *config.BotConfig) HandlerOption {
	return func(h *Handler) {
		if cfg.WebhookTimeout > 0 {
			h.webhookTimeout = cfg.WebhookTimeout
		}
		if cfg.MaxEventsPerWebhook > 0 {
			h.maxEvents = cfg.MaxEventsPerWebhook
		}
		if cfg.WebhookQueueSize > 0 {
			h.queueSize = cfg.WebhookQueueSize
		}
	}
}

// WithWebhookTimeout bounds the dispatch of one batch.
func WithWebhookTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.webhookTimeout = timeout
	}
}

// WithMaxEvents rejects batches with more events.
func WithMaxEvents(n int) HandlerOption {
	return func(h *Handler) {
		h.maxEvents = n
	}
}

// WithQueueSize sets how many accepted batches may wait for dispatch.
func WithQueueSize(n int) HandlerOption {
	return func(h *Handler) {
		h.queueSize = n
	}
}
