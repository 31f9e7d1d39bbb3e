// Package hello is the demo module: greetings, food quick replies, help
// buttons, an image attachment and a two-question conversation.
package hello

import (
	"context"
	"fmt"

	"github.com/garyellow/messenger-bot-go/internal/bot"
	"github.com/garyellow/messenger-bot-go/internal/chat"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hear"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

// ModuleName identifies the module in logs.
const ModuleName = "hello"

// Postback payloads of the help buttons.
const (
	PayloadSettings = "HELP_SETTINGS"
	PayloadFAQ      = "HELP_FAQ"
	PayloadHuman    = "HELP_HUMAN"
)

// ImageURL is the picture sent for "image".
var ImageURL = "https://source.unsplash.com/random/546x563/?code"

var (
	greetMatchers = append(match.Keywords("hello", "hi"), match.MustPattern(`(?i)hey( there)?`))
	foodMatchers  = match.Keywords("food", "hungry")
	foods         = []string{"Mexican", "Italian", "American", "Argentine"}
)

// Handler installs the demo rules.
type Handler struct {
	logger *logger.Logger
}

// NewHandler creates the demo module.
func NewHandler(log *logger.Logger) *Handler {
	return &Handler{logger: log.WithModule(ModuleName)}
}

// Name returns the module name
func (h *Handler) Name() string { return ModuleName }

// Register installs the hear rules and postback handlers.
func (h *Handler) Register(b *bot.Bot) error {
	rules := []struct {
		handler  hear.Handler
		matchers []match.Matcher
	}{
		{h.greet, greetMatchers},
		{h.food, foodMatchers},
		{h.help, match.Keywords("help")},
		{h.image, match.Keywords("image")},
		{h.askMeSomething, match.Keywords("ask me something")},
	}
	for _, r := range rules {
		if err := b.Hear(r.handler, r.matchers...); err != nil {
			return err
		}
	}

	b.OnPostback(messenger.GetStartedPayload, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
		h.say(ctx, c, messenger.Text{Text: "Welcome! Say hello, help or ask me something."})
	})
	b.OnPostback(PayloadFAQ, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
		h.say(ctx, c, messenger.Text{Text: "Try typing food, image or ask me something."})
	})
	b.OnPostback(PayloadSettings, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
		h.say(ctx, c, messenger.Text{Text: "There is nothing to configure yet."})
	})
	b.OnPostback(PayloadHuman, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
		h.say(ctx, c, messenger.Text{Text: "A human will get back to you soon."})
	})
	for _, food := range foods {
		b.OnQuickReply(messenger.QuickReplyPayload(food), func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
			h.say(ctx, c, messenger.Text{Text: food + " it is!"})
		})
	}
	return nil
}

func (h *Handler) say(ctx context.Context, c *chat.Chat, msg messenger.Message, opts ...chat.SayOptions) bool {
	if err := c.Say(ctx, msg, opts...); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to send reply")
		return false
	}
	return true
}

func (h *Handler) greet(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	if !h.say(ctx, c, messenger.Text{Text: "Hello, human friend!"}) {
		return
	}
	h.say(ctx, c, messenger.Text{Text: "How are you today?"},
		chat.SayOptions{SendOptions: messenger.SendOptions{Typing: true}})
}

func (h *Handler) food(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	h.say(ctx, c, messenger.Text{
		Text:         "What do you want to eat today?",
		QuickReplies: messenger.QuickReplies(foods...),
	})
}

func (h *Handler) help(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	h.say(ctx, c, messenger.Buttons{
		Text: "What do you need help with?",
		Buttons: []messenger.Button{
			{Type: "postback", Title: "Settings", Payload: PayloadSettings},
			{Type: "postback", Title: "FAQ", Payload: PayloadFAQ},
			{Type: "postback", Title: "Talk to a human", Payload: PayloadHuman},
		},
	})
}

func (h *Handler) image(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	h.say(ctx, c, messenger.Attachment{Type: "image", URL: ImageURL})
}

func (h *Handler) askMeSomething(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	if _, err := c.Conversation(ctx, h.aboutYou); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to start conversation")
	}
}

func (h *Handler) aboutYou(ctx context.Context, s *session.Session) {
	err := s.Ask(ctx, session.Text("What's your name?"), func(ctx context.Context, s *session.Session, ev event.Event, _ session.Dispatch) {
		s.Set("name", ev.Text)
		if err := s.Say(ctx, messenger.Text{Text: "Oh, your name is " + ev.Text}); err != nil {
			h.logger.WithError(err).WarnContext(ctx, "Failed to send reply")
		}
		if err := s.Ask(ctx, session.Text("What's your favorite food?"), h.favoriteFood); err != nil {
			h.logger.WithError(err).WarnContext(ctx, "Failed to ask question")
			s.End(ctx)
		}
	})
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to ask question")
		s.End(ctx)
	}
}

func (h *Handler) favoriteFood(ctx context.Context, s *session.Session, ev event.Event, _ session.Dispatch) {
	s.Set("food", ev.Text)
	msgs := []messenger.Message{
		messenger.Text{Text: "Got it, your favorite food is " + ev.Text},
		messenger.Text{Text: fmt.Sprintf("Ok, here's what you told me about you:\n- Name: %v\n- Favorite Food: %v",
			s.Get("name"), s.Get("food"))},
	}
	for _, msg := range msgs {
		if err := s.Say(ctx, msg); err != nil {
			h.logger.WithError(err).WarnContext(ctx, "Failed to send reply")
			break
		}
	}
	s.End(ctx)
}
