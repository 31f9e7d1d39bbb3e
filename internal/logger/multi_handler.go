package logger

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// MultiHandler writes each record to every handler enabled for its level:
// stdout JSON and, when configured, the Better Stack shipper.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil handlers and fans out to the rest.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{
		handlers: slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil }),
	}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(h.handlers, func(inner slog.Handler) bool {
		return inner.Enabled(ctx, level)
	})
}

// Handle gives every enabled handler its own copy of r. A failing sink does
// not stop the others; all errors are returned joined.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, inner := range h.handlers {
		if inner.Enabled(ctx, r.Level) {
			err = errors.Join(err, inner.Handle(ctx, r.Clone()))
		}
	}
	return err
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	next := make([]slog.Handler, len(h.handlers))
	for i, inner := range h.handlers {
		next[i] = fn(inner)
	}
	return &MultiHandler{handlers: next}
}
