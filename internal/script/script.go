// Package script loads declarative hear rules from YAML and installs them
// into a bot: keyword or pattern triggers, canned replies, postback replies
// and short question chains.
package script

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyellow/messenger-bot-go/internal/bot"
	"github.com/garyellow/messenger-bot-go/internal/chat"
	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hear"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

const maxButtons = 3

var placeholder = regexp.MustCompile(`\{\{\s*[\w.-]+\s*\}\}`)

// Script is the root of a script file.
type Script struct {
	Rules     []Rule     `yaml:"rules"`
	Postbacks []Postback `yaml:"postbacks"`
}

// Rule answers text messages that match any keyword or pattern.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
	Replies  []Reply  `yaml:"replies"`
	// Ask starts a conversation after the replies are sent.
	Ask []Step `yaml:"ask"`
	// Done is sent when the last Ask step is answered. {{key}} placeholders
	// are filled from the answers.
	Done *Reply `yaml:"done"`

	matchers []match.Matcher
}

// Postback answers a postback or quick reply payload.
type Postback struct {
	Payload string  `yaml:"payload"`
	Replies []Reply `yaml:"replies"`
}

// Step is one question of an Ask chain. The answer text is stored under Key.
type Step struct {
	Key      string `yaml:"key"`
	Question Reply  `yaml:"question"`
	Confirm  *Reply `yaml:"confirm"`
}

// Reply is one outgoing message.
type Reply struct {
	Text         string      `yaml:"text"`
	QuickReplies []string    `yaml:"quick_replies"`
	Buttons      []Button    `yaml:"buttons"`
	Attachment   *Attachment `yaml:"attachment"`
	Typing       bool        `yaml:"typing"`
}

// Button is a postback or web_url button. Without a payload or url a
// postback payload is generated from the title.
type Button struct {
	Title   string `yaml:"title"`
	Payload string `yaml:"payload"`
	URL     string `yaml:"url"`
}

// Attachment is media sent by URL.
type Attachment struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script document.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	for i := range s.Rules {
		r := &s.Rules[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		field := "rules." + r.Name

		for _, kw := range r.Keywords {
			if strings.TrimSpace(kw) != "" {
				r.matchers = append(r.matchers, match.Keyword(kw))
			}
		}
		for _, expr := range r.Patterns {
			p, err := match.Compile(expr)
			if err != nil {
				return errors.NewValidationError(field+".patterns", err.Error())
			}
			r.matchers = append(r.matchers, p)
		}
		if len(r.matchers) == 0 {
			return errors.NewValidationError(field, "needs at least one keyword or pattern")
		}
		if len(r.Replies) == 0 && len(r.Ask) == 0 {
			return errors.NewValidationError(field, "needs replies or an ask chain")
		}
		for j, reply := range r.Replies {
			if err := reply.validate(fmt.Sprintf("%s.replies[%d]", field, j)); err != nil {
				return err
			}
		}
		for j, step := range r.Ask {
			stepField := fmt.Sprintf("%s.ask[%d]", field, j)
			if step.Key == "" {
				return errors.NewValidationError(stepField+".key", "must not be empty")
			}
			if err := step.Question.validate(stepField + ".question"); err != nil {
				return err
			}
			if step.Confirm != nil {
				if err := step.Confirm.validate(stepField + ".confirm"); err != nil {
					return err
				}
			}
		}
		if r.Done != nil {
			if err := r.Done.validate(field + ".done"); err != nil {
				return err
			}
		}
	}

	for i, pb := range s.Postbacks {
		field := fmt.Sprintf("postbacks[%d]", i)
		if pb.Payload == "" {
			return errors.NewValidationError(field+".payload", "must not be empty")
		}
		if len(pb.Replies) == 0 {
			return errors.NewValidationError(field+".replies", "must not be empty")
		}
		for j, reply := range pb.Replies {
			if err := reply.validate(fmt.Sprintf("%s.replies[%d]", field, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Reply) validate(field string) error {
	switch {
	case r.Attachment != nil:
		if r.Attachment.URL == "" {
			return errors.NewValidationError(field+".attachment.url", "must not be empty")
		}
	case r.Text == "":
		return errors.NewValidationError(field+".text", "must not be empty")
	}
	if len(r.Buttons) > maxButtons {
		return errors.NewValidationError(field+".buttons", fmt.Sprintf("at most %d buttons", maxButtons))
	}
	for _, b := range r.Buttons {
		if b.Title == "" {
			return errors.NewValidationError(field+".buttons", "every button needs a title")
		}
	}
	return nil
}

// Message converts the reply into an outgoing message.
func (r Reply) Message() messenger.Message {
	quick := messenger.QuickReplies(r.QuickReplies...)
	switch {
	case r.Attachment != nil:
		kind := r.Attachment.Type
		if kind == "" {
			kind = "image"
		}
		return messenger.Attachment{Type: kind, URL: r.Attachment.URL, QuickReplies: quick}
	case len(r.Buttons) > 0:
		buttons := make([]messenger.Button, 0, len(r.Buttons))
		for _, b := range r.Buttons {
			switch {
			case b.URL != "":
				buttons = append(buttons, messenger.Button{Type: "web_url", Title: b.Title, URL: b.URL})
			case b.Payload != "":
				buttons = append(buttons, messenger.Button{Type: "postback", Title: b.Title, Payload: b.Payload})
			default:
				buttons = append(buttons, messenger.Button{Title: b.Title})
			}
		}
		return messenger.Buttons{Text: r.Text, Buttons: buttons}
	default:
		return messenger.Text{Text: r.Text, QuickReplies: quick}
	}
}

func (r Reply) options() messenger.SendOptions {
	return messenger.SendOptions{Typing: r.Typing}
}

// fill replaces {{key}} placeholders with session values.
func (r Reply) fill(s *session.Session) Reply {
	if !strings.Contains(r.Text, "{{") {
		return r
	}
	r.Text = placeholder.ReplaceAllStringFunc(r.Text, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		if v := s.Get(key); v != nil {
			return fmt.Sprint(v)
		}
		return ""
	})
	return r
}

// Name identifies the script as a bot module.
func (s *Script) Name() string { return "script" }

// Register installs the rules and postback replies.
func (s *Script) Register(b *bot.Bot) error {
	for _, r := range s.Rules {
		if err := b.Hear(r.handler(), r.matchers...); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	for _, pb := range s.Postbacks {
		replies := pb.Replies
		b.OnPostback(pb.Payload, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
			sayAll(ctx, c, replies)
		})
		b.OnQuickReply(pb.Payload, func(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
			sayAll(ctx, c, replies)
		})
	}
	return nil
}

func (r Rule) handler() hear.Handler {
	return func(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
		if !sayAll(ctx, c, r.Replies) || len(r.Ask) == 0 {
			return
		}
		// Opening only fails for optin users without a page-scoped id.
		_, _ = c.Conversation(ctx, r.conversation())
	}
}

func sayAll(ctx context.Context, c *chat.Chat, replies []Reply) bool {
	for _, reply := range replies {
		if err := c.Say(ctx, reply.Message(), chat.SayOptions{SendOptions: reply.options()}); err != nil {
			return false
		}
	}
	return true
}

// conversation builds the ask chain as nested answers.
func (r Rule) conversation() session.Factory {
	return func(ctx context.Context, s *session.Session) {
		if err := r.ask(ctx, s, 0); err != nil {
			s.End(ctx)
		}
	}
}

func (r Rule) ask(ctx context.Context, s *session.Session, i int) error {
	step := r.Ask[i]
	q := step.Question.fill(s)
	return s.Ask(ctx, session.Say(q.Message(), q.options()),
		func(ctx context.Context, s *session.Session, ev event.Event, _ session.Dispatch) {
			s.Set(step.Key, answerText(ev))
			if step.Confirm != nil {
				c := step.Confirm.fill(s)
				_ = s.Say(ctx, c.Message(), c.options())
			}
			if i+1 < len(r.Ask) {
				if err := r.ask(ctx, s, i+1); err != nil {
					s.End(ctx)
				}
				return
			}
			if r.Done != nil {
				d := r.Done.fill(s)
				_ = s.Say(ctx, d.Message(), d.options())
			}
			s.End(ctx)
		})
}

func answerText(ev event.Event) string {
	if ev.Text != "" {
		return ev.Text
	}
	return ev.PayloadKey
}
