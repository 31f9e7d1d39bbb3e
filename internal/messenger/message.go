// Package messenger is the Messenger Platform Send API and Profile API client.
package messenger

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/garyellow/messenger-bot-go/internal/errors"
)

// Message is an outgoing message. Implementations: Text, Buttons, Attachment, List, Cards.
type Message interface {
	wire(opts SendOptions) (*wireMessage, error)
}

// Text is a plain text message with optional quick replies.
type Text struct {
	Text         string
	QuickReplies []QuickReply
}

// QuickReply is a reply chip. A chip with only a Title gets a generated
// QuickReplyPayload.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Button is a template button. A button with only a Title becomes a postback
// button with a generated ButtonPayload.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Buttons is a button template.
type Buttons struct {
	Text    string
	Buttons []Button
}

// Attachment sends media by URL.
type Attachment struct {
	Type         string // image, audio, video or file
	URL          string
	QuickReplies []QuickReply
}

// Element is one card of a generic or list template.
type Element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// List is a list template. Only the first button is kept as the list footer.
type List struct {
	Elements []Element
	Buttons  []Button
}

// Cards is a generic (carousel) template.
type Cards struct {
	Elements []Element
}

// QuickReplies builds text quick replies from titles.
func QuickReplies(titles ...string) []QuickReply {
	out := make([]QuickReply, 0, len(titles))
	for _, t := range titles {
		out = append(out, QuickReply{Title: t})
	}
	return out
}

// PostbackButtons builds postback buttons from titles.
func PostbackButtons(titles ...string) []Button {
	out := make([]Button, 0, len(titles))
	for _, t := range titles {
		out = append(out, Button{Title: t})
	}
	return out
}

// Action is a sender action.
type Action string

const (
	ActionTypingOn  Action = "typing_on"
	ActionTypingOff Action = "typing_off"
	ActionMarkSeen  Action = "mark_seen"
)

const (
	typingPerRune = 10 * time.Millisecond
	typingDefault = time.Second
	// MaxTypingDuration is the longest typing indicator the platform shows.
	MaxTypingDuration = 20 * time.Second
)

// SendOptions tunes a single Send.
type SendOptions struct {
	// Typing shows a typing indicator before the message.
	Typing bool
	// TypingDuration overrides the automatic duration (10ms per text rune,
	// otherwise one second).
	TypingDuration time.Duration

	ImageAspectRatio string // generic template: horizontal or square
	TopElementStyle  string // list template: large or compact
}

// TypingDuration returns the indicator duration used for msg.
func TypingDuration(msg Message, opts SendOptions) time.Duration {
	d := opts.TypingDuration
	if d <= 0 {
		d = typingDefault
		if t, ok := msg.(Text); ok {
			d = time.Duration(utf8.RuneCountInString(t.Text)) * typingPerRune
		}
	}
	return min(d, MaxTypingDuration)
}

type wireMessage struct {
	Text         string          `json:"text,omitempty"`
	QuickReplies []QuickReply    `json:"quick_replies,omitempty"`
	Attachment   *wireAttachment `json:"attachment,omitempty"`
}

type wireAttachment struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type urlPayload struct {
	URL string `json:"url"`
}

type templatePayload struct {
	TemplateType     string    `json:"template_type"`
	Text             string    `json:"text,omitempty"`
	Buttons          []Button  `json:"buttons,omitempty"`
	Elements         []Element `json:"elements,omitempty"`
	ImageAspectRatio string    `json:"image_aspect_ratio,omitempty"`
	TopElementStyle  string    `json:"top_element_style,omitempty"`
}

func (m Text) wire(SendOptions) (*wireMessage, error) {
	if m.Text == "" {
		return nil, errors.NewValidationError("text", "must not be empty")
	}
	return &wireMessage{Text: m.Text, QuickReplies: formatQuickReplies(m.QuickReplies)}, nil
}

func (m Buttons) wire(SendOptions) (*wireMessage, error) {
	if m.Text == "" || len(m.Buttons) == 0 {
		return nil, errors.NewValidationError("buttons", "text and at least one button are required")
	}
	return templateMessage(templatePayload{
		TemplateType: "button",
		Text:         m.Text,
		Buttons:      formatButtons(m.Buttons),
	}), nil
}

func (m Attachment) wire(SendOptions) (*wireMessage, error) {
	switch m.Type {
	case "image", "audio", "video", "file":
	default:
		return nil, errors.NewValidationError("attachment", fmt.Sprintf("unsupported type %q", m.Type))
	}
	if m.URL == "" {
		return nil, errors.NewValidationError("attachment", "url is required")
	}
	return &wireMessage{
		Attachment:   &wireAttachment{Type: m.Type, Payload: urlPayload{URL: m.URL}},
		QuickReplies: formatQuickReplies(m.QuickReplies),
	}, nil
}

func (m List) wire(opts SendOptions) (*wireMessage, error) {
	if len(m.Elements) == 0 {
		return nil, errors.NewValidationError("list", "at least one element is required")
	}
	p := templatePayload{
		TemplateType:    "list",
		Elements:        formatElements(m.Elements),
		TopElementStyle: opts.TopElementStyle,
	}
	if len(m.Buttons) > 0 {
		p.Buttons = formatButtons(m.Buttons[:1])
	}
	return templateMessage(p), nil
}

func (m Cards) wire(opts SendOptions) (*wireMessage, error) {
	if len(m.Elements) == 0 {
		return nil, errors.NewValidationError("cards", "at least one element is required")
	}
	return templateMessage(templatePayload{
		TemplateType:     "generic",
		Elements:         formatElements(m.Elements),
		ImageAspectRatio: opts.ImageAspectRatio,
	}), nil
}

func templateMessage(p templatePayload) *wireMessage {
	return &wireMessage{Attachment: &wireAttachment{Type: "template", Payload: p}}
}

func formatQuickReplies(replies []QuickReply) []QuickReply {
	if len(replies) == 0 {
		return nil
	}
	out := make([]QuickReply, len(replies))
	for i, r := range replies {
		if r.ContentType == "" {
			r.ContentType = "text"
		}
		if r.ContentType == "text" && r.Payload == "" {
			r.Payload = QuickReplyPayload(r.Title)
		}
		out[i] = r
	}
	return out
}

func formatButtons(buttons []Button) []Button {
	if len(buttons) == 0 {
		return nil
	}
	out := make([]Button, len(buttons))
	for i, b := range buttons {
		if b.Type == "" {
			b.Type = "postback"
		}
		if b.Type == "postback" && b.Payload == "" {
			b.Payload = ButtonPayload(b.Title)
		}
		out[i] = b
	}
	return out
}

func formatElements(elements []Element) []Element {
	out := make([]Element, len(elements))
	for i, e := range elements {
		e.Buttons = formatButtons(e.Buttons)
		out[i] = e
	}
	return out
}
