// Package hear keeps the ordered table of text rules applications register
// with Hear and notifies every rule a message matches.
package hear

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/garyellow/messenger-bot-go/internal/chat"
	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// Result is handed to a Handler for each matching rule.
type Result struct {
	match.Result
	// Captured reports whether an earlier rule in the same dispatch matched.
	Captured bool
}

// Handler reacts to a matched message.
type Handler func(ctx context.Context, ev event.Event, c *chat.Chat, r Result)

type rule struct {
	matcher match.Matcher
	handler Handler
}

// Table is an ordered list of rules.
type Table struct {
	mu      sync.RWMutex
	rules   []rule
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewTable creates an empty table.
func NewTable(log *logger.Logger, m *metrics.Metrics) *Table {
	return &Table{
		log:     log.WithModule("hear"),
		metrics: m,
	}
}

// Register appends one rule per matcher, all sharing handler.
func (t *Table) Register(handler Handler, matchers ...match.Matcher) error {
	if handler == nil {
		return errors.NewValidationError("handler", "a handler is required")
	}
	matchers = slices.DeleteFunc(slices.Clone(matchers), func(m match.Matcher) bool { return m == nil })
	if len(matchers) == 0 {
		return errors.NewValidationError("matchers", "at least one keyword or pattern is required")
	}
	if i := slices.IndexFunc(matchers, func(m match.Matcher) bool { return !match.Valid(m) }); i >= 0 {
		return errors.NewValidationError("matchers", fmt.Sprintf("matcher %d is an empty keyword or an uncompiled pattern", i))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range matchers {
		t.rules = append(t.rules, rule{matcher: m, handler: handler})
	}
	return nil
}

// Len returns the number of rules.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}

// Dispatch runs every rule that matches a message event, in registration
// order, and reports whether any matched.
func (t *Table) Dispatch(ctx context.Context, ev event.Event, c *chat.Chat) bool {
	if ev.Kind != event.KindMessage {
		return false
	}

	t.mu.RLock()
	rules := slices.Clone(t.rules)
	t.mu.RUnlock()

	captured := false
	for _, r := range rules {
		res, ok := r.matcher.Match(ev.Text)
		if !ok {
			continue
		}
		t.metrics.RecordHearMatch(res.Kind())
		t.invoke(ctx, r, ev, c, Result{Result: res, Captured: captured})
		captured = true
	}
	return captured
}

func (t *Table) invoke(ctx context.Context, r rule, ev event.Event, c *chat.Chat, res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			t.metrics.RecordHandlerPanic("hear")
			sentry.CapturePanic(ctx, "hear", rec)
			t.log.ErrorContext(ctx, "hear handler panicked",
				"matcher", r.matcher.String(), "panic", fmt.Sprint(rec))
		}
	}()
	r.handler(ctx, ev, c, res)
}
