// Package bot routes classified Messenger events: active conversations get
// the first look, then hear rules for text messages, then named
// notifications for everything the application subscribed to.
package bot

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/chat"
	"github.com/garyellow/messenger-bot-go/internal/ctxutil"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hear"
	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/ratelimit"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

// Route labels for the events metric.
const (
	routeSession      = "session"
	routeHear         = "hear"
	routeNotification = "notification"
	routeDropped      = "dropped"
)

// Config holds the collaborators of a Bot.
type Config struct {
	Sender   messenger.Sender
	Profiles chat.ProfileSource
	// Hooks is created when nil.
	Hooks      *hooks.Manager
	Classifier event.Classifier
	Policy     session.Policy
	// UserLimiter drops floods from a single user before routing. Optional.
	UserLimiter *ratelimit.KeyedLimiter
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

// EventHandler reacts to a named notification. Captured is only meaningful
// for message notifications.
type EventHandler func(ctx context.Context, ev event.Event, c *chat.Chat, captured bool)

// Bot is the conversational router.
type Bot struct {
	classifier event.Classifier
	sessions   *session.Registry
	hear       *hear.Table
	hooks      *hooks.Manager
	chatDeps   chat.Deps
	limiter    *ratelimit.KeyedLimiter
	log        *logger.Logger
	metrics    *metrics.Metrics
	modules    []string

	dispatchMu sync.Mutex
}

// Module is a feature that installs its own hear rules, conversations and
// notification handlers.
type Module interface {
	Name() string
	Register(b *Bot) error
}

// New creates a Bot.
func New(cfg Config) *Bot {
	h := cfg.Hooks
	if h == nil {
		h = hooks.NewManager(cfg.Logger, cfg.Metrics)
	}
	sessions := session.NewRegistry(session.Deps{
		Sender:  cfg.Sender,
		Hooks:   h,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	}, cfg.Policy)

	return &Bot{
		classifier: cfg.Classifier,
		sessions:   sessions,
		hear:       hear.NewTable(cfg.Logger, cfg.Metrics),
		hooks:      h,
		chatDeps: chat.Deps{
			Sender:        cfg.Sender,
			Profiles:      cfg.Profiles,
			Conversations: sessions,
			Hooks:         h,
			Logger:        cfg.Logger,
		},
		limiter: cfg.UserLimiter,
		log:     cfg.Logger.WithModule("bot"),
		metrics: cfg.Metrics,
	}
}

// Hooks exposes the notification manager.
func (b *Bot) Hooks() *hooks.Manager { return b.hooks }

// Sessions exposes the session registry.
func (b *Bot) Sessions() *session.Registry { return b.sessions }

// Register installs modules in order and stops at the first failure.
func (b *Bot) Register(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(b); err != nil {
			return fmt.Errorf("register module %s: %w", m.Name(), err)
		}
		b.modules = append(b.modules, m.Name())
		b.log.WithField("bot_module", m.Name()).Info("Bot module registered")
	}
	return nil
}

// Modules returns the names of the registered modules.
func (b *Bot) Modules() []string {
	return slices.Clone(b.modules)
}

// Hear registers handler for text messages matched by any of the matchers.
func (b *Bot) Hear(handler hear.Handler, matchers ...match.Matcher) error {
	if err := b.hear.Register(handler, matchers...); err != nil {
		b.log.WithError(err).Error("hear registration rejected")
		return err
	}
	return nil
}

// Conversation starts a session with userID and runs factory to ask the
// first question.
func (b *Bot) Conversation(ctx context.Context, userID string, factory session.Factory) (*session.Session, error) {
	s, err := b.sessions.Open(ctx, userID, factory)
	if err != nil {
		b.log.WithError(err).ErrorContext(ctx, "conversation rejected")
		return nil, err
	}
	return s, nil
}

// On subscribes handler to a notification such as "event:postback:BUY".
func (b *Bot) On(name string, handler EventHandler) {
	if handler == nil {
		return
	}
	b.hooks.On(name, "", func(ctx context.Context, p hooks.Payload) error {
		if p.Event == nil {
			return fmt.Errorf("notification %s carries no event", p.Name)
		}
		handler(ctx, *p.Event, chat.ForEvent(*p.Event, b.chatDeps), p.Captured)
		return nil
	})
}

// OnPostback subscribes to postbacks with the given payload.
func (b *Bot) OnPostback(payload string, handler EventHandler) {
	b.On(event.Name(event.KindPostback, payload), handler)
}

// OnQuickReply subscribes to quick replies with the given payload.
func (b *Bot) OnQuickReply(payload string, handler EventHandler) {
	b.On(event.Name(event.KindQuickReply, payload), handler)
}

// Chat returns a reply handle for userID.
func (b *Bot) Chat(userID string) *chat.Chat {
	return chat.New(messenger.To(userID), b.chatDeps)
}

// Handle classifies a webhook notification and dispatches its events.
// A batch that fails classification is rejected as a whole.
func (b *Bot) Handle(ctx context.Context, env *event.Envelope) error {
	events, err := b.Classify(env)
	if err != nil {
		return err
	}
	b.Dispatch(ctx, events)
	return nil
}

// Classify turns a notification into events without dispatching them.
func (b *Bot) Classify(env *event.Envelope) ([]event.Event, error) {
	events, err := b.classifier.Classify(env)
	if err != nil {
		b.log.WithError(err).Error("webhook notification rejected")
		return nil, err
	}
	return events, nil
}

// Dispatch routes already classified events in order. Only one batch is
// dispatched at a time.
func (b *Bot) Dispatch(ctx context.Context, events []event.Event) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	start := time.Now()
	var dropped *event.Messaging
	for _, ev := range events {
		if ev.Raw != nil && ev.Raw == dropped {
			b.metrics.RecordEvent(string(ev.Kind), routeDropped)
			continue
		}
		if !b.allow(ev) {
			dropped = ev.Raw
			b.metrics.RecordEvent(string(ev.Kind), routeDropped)
			b.log.WarnContext(ctx, "user rate limit exceeded; dropping event",
				"user_id", ev.UserID, "kind", string(ev.Kind))
			continue
		}
		b.dispatch(ctx, ev)
	}
	b.metrics.RecordDispatch(time.Since(start).Seconds())
}

// allow applies the per-user limiter to user-initiated events.
func (b *Bot) allow(ev event.Event) bool {
	if b.limiter == nil || ev.IsEcho {
		return true
	}
	switch ev.Kind {
	case event.KindMessage, event.KindAttachment, event.KindPostback:
		return b.limiter.Allow(ev.UserID)
	}
	return true
}

func (b *Bot) dispatch(ctx context.Context, ev event.Event) {
	if ev.UserID != "" {
		ctx = ctxutil.WithUserID(ctx, ev.UserID)
	}
	ctx = ctxutil.WithEventKind(ctx, string(ev.Kind))

	if b.sessions.Route(ctx, ev) {
		b.metrics.RecordEvent(string(ev.Kind), routeSession)
		b.log.DebugContext(ctx, "event captured by conversation")
		return
	}

	switch ev.Kind {
	case event.KindMessage:
		captured := b.hear.Dispatch(ctx, ev, chat.ForEvent(ev, b.chatDeps))
		route := routeNotification
		if captured {
			route = routeHear
		}
		b.metrics.RecordEvent(string(ev.Kind), route)
		b.emit(ctx, ev, ev.Name(), captured)

	case event.KindPostback, event.KindQuickReply:
		b.metrics.RecordEvent(string(ev.Kind), routeNotification)
		if ev.PayloadKey != "" {
			b.emit(ctx, ev, ev.KeyedName(), false)
		}
		b.emit(ctx, ev, ev.Name(), false)

	default:
		b.metrics.RecordEvent(string(ev.Kind), routeNotification)
		b.emit(ctx, ev, ev.Name(), false)
	}
}

func (b *Bot) emit(ctx context.Context, ev event.Event, name string, captured bool) {
	b.hooks.Emit(ctx, hooks.Payload{
		Name:     name,
		Event:    &ev,
		UserID:   ev.UserID,
		Captured: captured,
	})
}
