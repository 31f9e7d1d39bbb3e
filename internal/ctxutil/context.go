// Package ctxutil carries the tracing values of one event dispatch through
// context: who sent it, which webhook batch it came in, its kind and the
// conversation session handling it.
package ctxutil

import (
	"context"
)

type traceKey struct{}

// Trace is the set of correlation values attached to a context. Zero fields
// are unset.
type Trace struct {
	UserID    string // page-scoped sender id
	RequestID string // one per webhook batch
	EventKind string
	SessionID string
}

// TraceFrom returns the values attached to ctx.
func TraceFrom(ctx context.Context) Trace {
	t, _ := ctx.Value(traceKey{}).(Trace)
	return t
}

// WithTrace replaces the values attached to ctx.
func WithTrace(ctx context.Context, t Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func update(ctx context.Context, fn func(*Trace)) context.Context {
	t := TraceFrom(ctx)
	fn(&t)
	return WithTrace(ctx, t)
}

// WithUserID attaches the sender of the event being dispatched.
func WithUserID(ctx context.Context, userID string) context.Context {
	return update(ctx, func(t *Trace) { t.UserID = userID })
}

// GetUserID returns the attached user id or "".
func GetUserID(ctx context.Context) string {
	return TraceFrom(ctx).UserID
}

// WithRequestID attaches the webhook batch id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return update(ctx, func(t *Trace) { t.RequestID = requestID })
}

// GetRequestID returns the batch id and whether one is set.
func GetRequestID(ctx context.Context) (string, bool) {
	id := TraceFrom(ctx).RequestID
	return id, id != ""
}

// WithEventKind attaches the kind of event being dispatched.
func WithEventKind(ctx context.Context, kind string) context.Context {
	return update(ctx, func(t *Trace) { t.EventKind = kind })
}

// GetEventKind returns the attached event kind or "".
func GetEventKind(ctx context.Context) string {
	return TraceFrom(ctx).EventKind
}

// WithSessionID attaches the conversation session running a callback.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return update(ctx, func(t *Trace) { t.SessionID = sessionID })
}

// GetSessionID returns the attached session id or "".
func GetSessionID(ctx context.Context) string {
	return TraceFrom(ctx).SessionID
}

// PreserveTracing returns a context that keeps ctx's tracing values but none
// of its cancellation or deadline. Deferred sends use it so they outlive the
// dispatch that queued them.
func PreserveTracing(ctx context.Context) context.Context {
	return WithTrace(context.Background(), TraceFrom(ctx))
}
