// Package logger provides structured logging utilities for the application.
package logger

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
)

const redacted = "[REDACTED]"

// secretKeys are attribute names whose values never reach a log sink.
var secretKeys = map[string]bool{
	"access_token":    true,
	"app_secret":      true,
	"appsecret_proof": true,
	"verify_token":    true,
}

// tokenParam matches credentials embedded in Graph API URLs and error strings.
var tokenParam = regexp.MustCompile(`((?:access_token|appsecret_proof|hub\.verify_token)=)[^&\s"]+`)

// ContextHandler adds the tracing values carried by the context (user_id,
// request_id, event_kind, session_id) to every record and masks Graph API credentials.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler wraps handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rebuilds the record with secrets masked and the context values
// appended. Canceling ctx does not affect record processing.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, redactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})

	if userID := ctxutil.GetUserID(ctx); userID != "" {
		out.AddAttrs(slog.String("user_id", userID))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		out.AddAttrs(slog.String("request_id", requestID))
	}
	if kind := ctxutil.GetEventKind(ctx); kind != "" {
		out.AddAttrs(slog.String("event_kind", kind))
	}
	if sessionID := ctxutil.GetSessionID(ctx); sessionID != "" {
		out.AddAttrs(slog.String("session_id", sessionID))
	}
	return h.handler.Handle(ctx, out)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redactAttr(a)
	}
	return &ContextHandler{handler: h.handler.WithAttrs(masked)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if secretKeys[a.Key] {
		return slog.String(a.Key, redacted)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = redactAttr(g)
		}
		return slog.Group(a.Key, masked...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, redactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func redactString(s string) string {
	return tokenParam.ReplaceAllString(s, "${1}"+redacted)
}
