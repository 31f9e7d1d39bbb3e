// Package session implements per-user conversations: a dialogue state machine
// that asks questions and routes the user's replies to listener rules or a
// pending continuation, and the registry that tracks active sessions.
package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
)

// State is a session lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateIdle
	StateWaiting
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateNotStarted, StateIdle, StateWaiting, StateEnded} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Question is delivered to the user when a session asks.
type Question interface {
	Deliver(ctx context.Context, s *Session) error
}

// QuestionFunc composes and sends a question itself.
type QuestionFunc func(ctx context.Context, s *Session) error

func (f QuestionFunc) Deliver(ctx context.Context, s *Session) error { return f(ctx, s) }

type literalQuestion struct {
	msg  messenger.Message
	opts messenger.SendOptions
}

func (q literalQuestion) Deliver(ctx context.Context, s *Session) error {
	return s.Say(ctx, q.msg, q.opts)
}

// Say builds a question from a literal message.
func Say(msg messenger.Message, opts ...messenger.SendOptions) Question {
	q := literalQuestion{msg: msg}
	if len(opts) > 0 {
		q.opts = opts[0]
	}
	return q
}

// Text builds a text question with optional quick replies.
func Text(text string, quickReplies ...string) Question {
	return Say(messenger.Text{Text: text, QuickReplies: messenger.QuickReplies(quickReplies...)})
}

// Pending is the resumable state of an unanswered question: which question
// was asked, the session context at that moment, and the step to run next.
type Pending struct {
	QuestionID string         `json:"question_id"`
	Context    map[string]any `json:"context,omitempty"`
	Next       Answer         `json:"-"`
}

// Deps are the collaborators a session reports to.
type Deps struct {
	Sender  messenger.Sender
	Hooks   *hooks.Manager
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Session is one user's dialogue with the bot.
type Session struct {
	id     string
	userID string
	deps   Deps
	log    *logger.Logger
	onEnd  func(*Session)

	mu        sync.Mutex
	state     State
	data      map[string]any
	rules     []ListenerRule
	pending   *Pending
	asked     int
	// answered is set once the continuation of the last question ran and
	// cleared by the next Ask.
	answered  bool
	startedAt time.Time
	endedAt   time.Time
}

// New creates a session in the not-started state. Most callers use
// Registry.Open instead.
func New(userID string, deps Deps) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		userID: userID,
		deps:   deps,
		log:    deps.Logger.WithModule("session").WithField("session_id", id),
		data:   make(map[string]any),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsActive reports whether the session started and has not ended.
func (s *Session) IsActive() bool {
	st := s.State()
	return st == StateIdle || st == StateWaiting
}

// IsWaiting reports whether the session is waiting for an answer.
func (s *Session) IsWaiting() bool {
	return s.State() == StateWaiting
}

// Pending returns a copy of the pending continuation, or nil.
func (s *Session) Pending() *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// Get reads a context value.
func (s *Session) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Set writes a context value and returns it.
func (s *Session) Set(key string, value any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return value
}

// Say sends a message to the session's user.
func (s *Session) Say(ctx context.Context, msg messenger.Message, opts ...messenger.SendOptions) error {
	var o messenger.SendOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	_, err := s.deps.Sender.Send(ctx, messenger.To(s.userID), msg, o)
	return err
}

// TypingIndicator shows the typing indicator for d.
func (s *Session) TypingIndicator(ctx context.Context, d time.Duration) error {
	return messenger.TypingIndicator(ctx, s.deps.Sender, messenger.To(s.userID), d)
}

// Start moves a new session to idle and emits session-started.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.deps.Metrics.RecordSessionStarted()
	s.log.DebugContext(ctx, "session started", "user_id", s.userID)
	s.deps.Hooks.Emit(ctx, hooks.Payload{
		Name:   hooks.SessionStarted,
		UserID: s.userID,
		Data:   map[string]any{"session_id": s.id},
	})
}

// Ask delivers a question and waits for the reply. The rules are checked
// before answer when the reply arrives; answer runs when none of them fires.
// Invalid arguments leave the session unchanged.
func (s *Session) Ask(ctx context.Context, q Question, answer Answer, rules ...ListenerRule) error {
	if q == nil {
		return errors.NewValidationError("question", "a question is required")
	}
	if answer == nil {
		return errors.NewValidationError("answer", "an answer callback is required")
	}
	for _, r := range rules {
		if !r.valid() {
			return errors.NewValidationError("rules", fmt.Sprintf("listener rule %s needs a callback and a selector", r))
		}
	}

	s.mu.Lock()
	if s.state == StateEnded || s.state == StateNotStarted {
		st := s.state
		s.mu.Unlock()
		if st == StateEnded {
			return errors.ErrSessionEnded
		}
		return errors.NewValidationError("session", "session has not started")
	}
	s.asked++
	qid := fmt.Sprintf("q%d", s.asked)
	s.state = StateWaiting
	s.answered = false
	s.rules = slices.Clone(rules)
	s.pending = &Pending{QuestionID: qid, Context: maps.Clone(s.data), Next: answer}
	s.mu.Unlock()

	if err := q.Deliver(ctx, s); err != nil {
		s.log.WithError(err).WarnContext(ctx, "failed to deliver question", "question_id", qid)
		return fmt.Errorf("deliver question %s: %w", qid, err)
	}
	return nil
}

type outcome int

const (
	outcomeFire outcome = iota
	outcomeSuppress
	outcomeEnd
)

// Respond routes a reply while the session is waiting. A reply reaching an
// idle session whose last continuation ran without asking again ends it.
// Other replies that arrive when nothing is waiting are dropped.
func (s *Session) Respond(ctx context.Context, ev event.Event) {
	s.mu.Lock()
	if s.state != StateWaiting {
		st, answered := s.state, s.answered
		s.mu.Unlock()
		if st == StateIdle && answered && ev.Kind != event.KindQuickReply {
			s.log.InfoContext(ctx, "continuation did not ask again; ending session", "kind", string(ev.Kind))
			s.End(ctx)
			return
		}
		s.log.DebugContext(ctx, "not waiting for an answer; dropping reply",
			"state", st.String(), "kind", string(ev.Kind))
		return
	}

	cb, d, out := s.route(ev)
	if out == outcomeFire {
		s.answered = d.Selector == ""
		s.state = StateIdle
		s.rules = nil
		s.pending = nil
	}
	s.mu.Unlock()

	switch out {
	case outcomeFire:
		s.invoke(ctx, cb, ev, d)
	case outcomeSuppress:
		s.log.DebugContext(ctx, "reply handled by paired quick reply event", "kind", string(ev.Kind))
	case outcomeEnd:
		s.log.InfoContext(ctx, "unanswerable reply; ending session", "kind", string(ev.Kind))
		s.End(ctx)
	}
}

// route picks the callback for ev. Callers hold s.mu.
func (s *Session) route(ev event.Event) (Answer, Dispatch, outcome) {
	qid := ""
	if s.pending != nil {
		qid = s.pending.QuestionID
	}
	fire := func(r ListenerRule, m *match.Result) (Answer, Dispatch, outcome) {
		return r.callback, Dispatch{QuestionID: qid, Selector: r.String(), Match: m}, outcomeFire
	}

	if ev.Kind == event.KindPostback || ev.Kind == event.KindQuickReply {
		for _, r := range s.rules {
			if r.specific(ev.Kind, ev.PayloadKey) {
				return fire(r, nil)
			}
		}
		for _, r := range s.rules {
			if r.generic(ev.Kind) {
				return fire(r, nil)
			}
		}
	}

	if ev.Kind == event.KindAttachment {
		for _, r := range s.rules {
			if r.sel == selectAttachment {
				return fire(r, nil)
			}
		}
	}

	if ev.Kind == event.KindMessage {
		// The paired quick_reply event dispatches a tapped quick reply, so a
		// listening quick-reply rule outranks pattern rules on the text.
		if ev.HasQuickReply() {
			for _, r := range s.rules {
				if r.specific(event.KindQuickReply, ev.PayloadKey) || r.generic(event.KindQuickReply) {
					return nil, Dispatch{}, outcomeSuppress
				}
			}
		}

		for _, r := range s.rules {
			if r.sel != selectPattern {
				continue
			}
			if res, ok := match.First(ev.Text, r.matchers...); ok {
				return fire(r, &res)
			}
		}
	}

	if ev.Kind == event.KindQuickReply {
		return nil, Dispatch{}, outcomeSuppress
	}

	if s.pending != nil && s.pending.Next != nil {
		return s.pending.Next, Dispatch{QuestionID: qid}, outcomeFire
	}
	return nil, Dispatch{}, outcomeEnd
}

func (s *Session) invoke(ctx context.Context, cb Answer, ev event.Event, d Dispatch) {
	ctx = ctxutil.WithSessionID(ctx, s.id)
	defer func() {
		if r := recover(); r != nil {
			s.deps.Metrics.RecordHandlerPanic("session")
			sentry.CapturePanic(ctx, "session", r)
			s.log.ErrorContext(ctx, "answer callback panicked",
				"question_id", d.QuestionID, "selector", d.Selector, "panic", fmt.Sprint(r))
		}
	}()
	cb(ctx, s, ev, d)
}

// End finishes the session and emits session-ended. Ending twice is a no-op.
func (s *Session) End(ctx context.Context) {
	s.finish(ctx, false)
}

func (s *Session) finish(ctx context.Context, replaced bool) {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	s.rules = nil
	s.pending = nil
	s.endedAt = time.Now()
	onEnd := s.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd(s)
	}

	s.deps.Metrics.RecordSessionEnded(replaced)
	s.log.DebugContext(ctx, "session ended", "user_id", s.userID, "replaced", replaced)
	s.deps.Hooks.Emit(ctx, hooks.Payload{
		Name:   hooks.SessionEnded,
		UserID: s.userID,
		Data: map[string]any{
			"session_id": s.id,
			"replaced":   replaced,
			"snapshot":   s.Snapshot(),
		},
	})
}

// Snapshot is a serialisable view of a session.
type Snapshot struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	State      State          `json:"state"`
	QuestionID string         `json:"question_id,omitempty"`
	Asked      int            `json:"asked"`
	Context    map[string]any `json:"context,omitempty"`
	Selectors  []string       `json:"selectors,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		UserID:    s.userID,
		State:     s.state,
		Asked:     s.asked,
		Context:   maps.Clone(s.data),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	if s.pending != nil {
		snap.QuestionID = s.pending.QuestionID
	}
	for _, r := range s.rules {
		snap.Selectors = append(snap.Selectors, r.String())
	}
	return snap
}
