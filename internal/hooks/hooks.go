// Package hooks provides the named notifications the router emits to the
// application: session lifecycle and "event:<kind>[:<key>]" announcements.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// Lifecycle notification names.
const (
	SessionStarted = "session-started"
	SessionEnded   = "session-ended"
)

// Payload carries notification data to handlers.
type Payload struct {
	Name string `json:"name"`
	// Event is the classified event for "event:*" notifications.
	Event  *event.Event `json:"-"`
	UserID string       `json:"user_id,omitempty"`
	// Captured reports whether a hear rule already handled a message event.
	Captured bool           `json:"captured,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Handler handles a notification.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager keeps handler registrations and emits notifications.
type Manager struct {
	mu       sync.Mutex
	handlers map[string][]namedHandler
	seq      uint64
	log      *logger.Logger
	metrics  *metrics.Metrics
}

type namedHandler struct {
	name    string
	handler Handler
	once    bool
	when    func(Payload) bool
}

// NewManager creates a hook manager.
func NewManager(log *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.WithModule("hooks"),
		metrics:  m,
	}
}

// On registers a handler for the named notification.
// The handler name identifies it for logging and Off.
func (m *Manager) On(name, handlerName string, handler Handler) {
	m.add(name, namedHandler{name: handlerName, handler: handler})
}

// Once registers a handler that is removed after its first invocation.
func (m *Manager) Once(name, handlerName string, handler Handler) {
	m.add(name, namedHandler{name: handlerName, handler: handler, once: true})
}

// OnceIf is like Once, but the handler is only consumed by a notification
// whose payload satisfies when.
func (m *Manager) OnceIf(name, handlerName string, when func(Payload) bool, handler Handler) {
	m.add(name, namedHandler{name: handlerName, handler: handler, once: true, when: when})
}

func (m *Manager) add(name string, h namedHandler) {
	if h.handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.name == "" {
		m.seq++
		h.name = fmt.Sprintf("anonymous-%d", m.seq)
	}
	m.handlers[name] = append(m.handlers[name], h)
	m.log.Debug("hook registered", "notification", name, "handler", h.name)
}

// Off removes all handlers with the given name from the notification.
func (m *Manager) Off(name, handlerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[name]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != handlerName {
			filtered = append(filtered, h)
		}
	}
	m.handlers[name] = filtered
}

// Emit dispatches a notification to all registered handlers synchronously,
// in registration order. Handler errors and panics are logged and do not
// prevent subsequent handlers from running. No lock is held while handlers run.
// Emitting on a nil Manager does nothing.
func (m *Manager) Emit(ctx context.Context, p Payload) {
	if m == nil {
		return
	}
	handlers := m.take(p)
	for _, h := range handlers {
		m.invoke(ctx, h, p)
	}
}

// take snapshots the handlers for p and removes once-handlers it consumes.
func (m *Manager) take(p Payload) []namedHandler {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered := m.handlers[p.Name]
	if len(registered) == 0 {
		return nil
	}

	selected := make([]namedHandler, 0, len(registered))
	kept := registered[:0:0]
	for _, h := range registered {
		matches := h.when == nil || h.when(p)
		if matches {
			selected = append(selected, h)
		}
		if !(h.once && matches) {
			kept = append(kept, h)
		}
	}
	m.handlers[p.Name] = kept
	return selected
}

func (m *Manager) invoke(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.RecordHandlerPanic("hooks")
			sentry.CapturePanic(ctx, "hooks", r)
			m.log.ErrorContext(ctx, "hook handler panicked",
				"notification", p.Name, "handler", h.name, "panic", fmt.Sprint(r))
		}
	}()

	if err := h.handler(ctx, p); err != nil {
		m.log.WithError(err).WarnContext(ctx, "hook handler error",
			"notification", p.Name, "handler", h.name)
	}
}

// Count returns the number of handlers registered for a notification.
func (m *Manager) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers[name])
}

// Names returns the notifications that have at least one handler registered.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.handlers))
	for name, handlers := range m.handlers {
		if len(handlers) > 0 {
			names = append(names, name)
		}
	}
	return names
}
