// Package sentry wraps the Sentry Go SDK for error tracking.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
)

// Config holds Sentry configuration.
type Config struct {
	// DSN is the project DSN. An empty DSN disables Sentry.
	DSN string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK. It is a no-op when DSN is empty.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException captures an error with the hub bound to ctx, tagging it
// with the Messenger user and request being processed.
func CaptureException(ctx context.Context, err error) {
	if err == nil || !IsEnabled() {
		return
	}
	hub := hubFromContext(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		tagScope(ctx, scope)
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic from an application handler.
func CapturePanic(ctx context.Context, component string, recovered any) {
	if recovered == nil || !IsEnabled() {
		return
	}
	hub := hubFromContext(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		tagScope(ctx, scope)
		scope.SetTag("component", component)
		hub.Recover(recovered)
	})
}

func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func tagScope(ctx context.Context, scope *sentry.Scope) {
	if userID := ctxutil.GetUserID(ctx); userID != "" {
		scope.SetUser(sentry.User{ID: userID})
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		scope.SetTag("request_id", requestID)
	}
	if kind := ctxutil.GetEventKind(ctx); kind != "" {
		scope.SetTag("event_kind", kind)
	}
	if sessionID := ctxutil.GetSessionID(ctx); sessionID != "" {
		scope.SetTag("session_id", sessionID)
	}
}
