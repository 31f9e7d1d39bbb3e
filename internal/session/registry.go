package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// Policy decides what Open does when the user already has an active session.
type Policy int

const (
	// PolicyAllowConcurrent keeps earlier sessions; a reply reaches all of them.
	PolicyAllowConcurrent Policy = iota
	// PolicyReplace ends the user's earlier sessions before opening a new one.
	PolicyReplace
)

// ParsePolicy maps a config value ("concurrent", "replace") to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "concurrent":
		return PolicyAllowConcurrent, nil
	case "replace":
		return PolicyReplace, nil
	default:
		return PolicyAllowConcurrent, errors.NewValidationError("session_policy", fmt.Sprintf("unknown policy %q", s))
	}
}

func (p Policy) String() string {
	if p == PolicyReplace {
		return "replace"
	}
	return "concurrent"
}

// Factory wires the first question of a new session.
type Factory func(ctx context.Context, s *Session)

// Registry tracks active sessions and routes events to them.
type Registry struct {
	deps   Deps
	policy Policy
	log    *logger.Logger

	mu     sync.Mutex
	active []*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, policy Policy) *Registry {
	return &Registry{
		deps:   deps,
		policy: policy,
		log:    deps.Logger.WithModule("session_registry"),
	}
}

// Open starts a session for userID and runs factory with it.
func (r *Registry) Open(ctx context.Context, userID string, factory Factory) (*Session, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userID", "must not be empty")
	}
	if factory == nil {
		return nil, errors.NewValidationError("factory", "a conversation factory is required")
	}

	if r.policy == PolicyReplace {
		for _, old := range r.ForUser(userID) {
			r.log.DebugContext(ctx, "replacing active session", "user_id", userID, "session_id", old.ID())
			old.finish(ctx, true)
		}
	}

	s := New(userID, r.deps)
	s.onEnd = r.remove
	r.mu.Lock()
	r.active = append(r.active, s)
	r.mu.Unlock()

	s.Start(ctx)
	r.runFactory(ctx, s, factory)
	return s, nil
}

func (r *Registry) runFactory(ctx context.Context, s *Session, factory Factory) {
	defer func() {
		if rec := recover(); rec != nil {
			r.deps.Metrics.RecordHandlerPanic("conversation")
			sentry.CapturePanic(ctx, "conversation", rec)
			r.log.ErrorContext(ctx, "conversation factory panicked",
				"session_id", s.ID(), "panic", fmt.Sprint(rec))
		}
	}()
	factory(ctx, s)
}

// Route hands ev to every active session of its user and reports whether
// there was at least one.
func (r *Registry) Route(ctx context.Context, ev event.Event) bool {
	if ev.UserID == "" {
		return false
	}
	sessions := r.ForUser(ev.UserID)
	for _, s := range sessions {
		s.Respond(ctx, ev)
	}
	return len(sessions) > 0
}

// ForUser returns the active sessions of a user, oldest first.
func (r *Registry) ForUser(userID string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.active {
		if s.userID == userID && s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// Active returns all active sessions.
func (r *Registry) Active() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.active)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// EndAll ends every session, used on shutdown.
func (r *Registry) EndAll(ctx context.Context) {
	for _, s := range r.Active() {
		s.End(ctx)
	}
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = slices.DeleteFunc(r.active, func(x *Session) bool { return x == s })
}
