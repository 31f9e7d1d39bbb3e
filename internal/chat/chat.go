// Package chat provides the per-user reply handle given to hear handlers and
// notification handlers.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

var sayErr = errors.NewWrapper("chat", "say")

// ProfileSource looks up user profiles.
type ProfileSource interface {
	Lookup(ctx context.Context, userID string) (*messenger.Profile, error)
}

// Conversations opens sessions.
type Conversations interface {
	Open(ctx context.Context, userID string, factory session.Factory) (*session.Session, error)
}

// Deps are shared by every Chat.
type Deps struct {
	Sender        messenger.Sender
	Profiles      ProfileSource
	Conversations Conversations
	Hooks         *hooks.Manager
	Logger        *logger.Logger
}

// SayOptions extends the send options with receipt callbacks.
type SayOptions struct {
	messenger.SendOptions
	// OnDelivery runs once on the user's next delivery receipt.
	OnDelivery hooks.Handler
	// OnRead runs once on the user's next read receipt.
	OnRead hooks.Handler
}

// Chat talks to one user.
type Chat struct {
	to   messenger.Recipient
	deps Deps
	log  *logger.Logger
}

// New creates a chat handle for a recipient.
func New(to messenger.Recipient, deps Deps) *Chat {
	return &Chat{
		to:   to,
		deps: deps,
		log:  deps.Logger.WithModule("chat"),
	}
}

// ForEvent addresses the sender of ev, or the optin user_ref when the event
// has no sender.
func ForEvent(ev event.Event, deps Deps) *Chat {
	return New(messenger.Recipient{ID: ev.UserID, UserRef: refWithoutID(ev)}, deps)
}

func refWithoutID(ev event.Event) string {
	if ev.UserID != "" {
		return ""
	}
	return ev.UserRef
}

// UserID returns the page-scoped id of the user, empty for user_ref chats.
func (c *Chat) UserID() string { return c.to.ID }

// Recipient returns the address used for sends.
func (c *Chat) Recipient() messenger.Recipient { return c.to }

// Say sends one message.
func (c *Chat) Say(ctx context.Context, msg messenger.Message, opts ...SayOptions) error {
	var o SayOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	c.watchReceipts(o)
	if _, err := c.deps.Sender.Send(ctx, c.to, msg, o.SendOptions); err != nil {
		return sayErr.Wrapf(err, "say to %s", c.to.ID)
	}
	return nil
}

// SayText sends a text message with optional quick replies.
func (c *Chat) SayText(ctx context.Context, text string, quickReplies ...string) error {
	return c.Say(ctx, messenger.Text{Text: text, QuickReplies: messenger.QuickReplies(quickReplies...)})
}

// SayAll sends messages one after another and stops at the first failure.
// Receipt callbacks in opts are attached to the last message only.
func (c *Chat) SayAll(ctx context.Context, msgs []messenger.Message, opts ...SayOptions) error {
	var o SayOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	plain := SayOptions{SendOptions: o.SendOptions}
	for i, msg := range msgs {
		current := plain
		if i == len(msgs)-1 {
			current = o
		}
		if err := c.Say(ctx, msg, current); err != nil {
			return fmt.Errorf("message %d of %d: %w", i+1, len(msgs), err)
		}
	}
	return nil
}

// SendAction sends a sender action such as mark_seen.
func (c *Chat) SendAction(ctx context.Context, action messenger.Action) error {
	return c.deps.Sender.SendAction(ctx, c.to, action)
}

// TypingIndicator shows the typing indicator for d.
func (c *Chat) TypingIndicator(ctx context.Context, d time.Duration) error {
	return messenger.TypingIndicator(ctx, c.deps.Sender, c.to, d)
}

// UserProfile returns the user's profile.
func (c *Chat) UserProfile(ctx context.Context) (*messenger.Profile, error) {
	if c.deps.Profiles == nil {
		return nil, errors.NewValidationError("profiles", "no profile source configured")
	}
	if c.to.ID == "" {
		return nil, errors.NewValidationError("userID", "profile lookup needs a page-scoped id")
	}
	return c.deps.Profiles.Lookup(ctx, c.to.ID)
}

// Conversation starts a session with this user.
func (c *Chat) Conversation(ctx context.Context, factory session.Factory) (*session.Session, error) {
	if c.deps.Conversations == nil {
		return nil, errors.NewValidationError("conversations", "no session registry configured")
	}
	return c.deps.Conversations.Open(ctx, c.to.ID, factory)
}

func (c *Chat) watchReceipts(o SayOptions) {
	if c.deps.Hooks == nil || c.to.ID == "" {
		return
	}
	mine := func(p hooks.Payload) bool { return p.UserID == c.to.ID }
	if o.OnDelivery != nil {
		c.deps.Hooks.OnceIf(event.Name(event.KindDelivery, ""), "chat-delivery:"+c.to.ID, mine, o.OnDelivery)
	}
	if o.OnRead != nil {
		c.deps.Hooks.OnceIf(event.Name(event.KindRead, ""), "chat-read:"+c.to.ID, mine, o.OnRead)
	}
}
