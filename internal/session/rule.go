package session

import (
	"context"
	"strings"

	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/match"
)

// Answer continues a dialogue after a reply arrives.
type Answer func(ctx context.Context, s *Session, ev event.Event, d Dispatch)

// Dispatch describes why an Answer was invoked.
type Dispatch struct {
	// QuestionID identifies the question being answered.
	QuestionID string
	// Selector is the rule that fired, or empty for the pending continuation.
	Selector string
	// Match is set when a pattern rule fired.
	Match *match.Result
}

type selector int

const (
	selectPostback selector = iota + 1
	selectAnyPostback
	selectQuickReply
	selectAnyQuickReply
	selectAttachment
	selectPattern
)

// ListenerRule routes a reply to a callback while a session is waiting.
// Build rules with OnPostback, OnAnyPostback, OnQuickReply, OnAnyQuickReply,
// OnAttachment and OnPattern.
type ListenerRule struct {
	sel      selector
	key      string
	matchers []match.Matcher
	callback Answer
}

// OnPostback fires for a postback with the given payload.
func OnPostback(payload string, cb Answer) ListenerRule {
	return ListenerRule{sel: selectPostback, key: payload, callback: cb}
}

// OnAnyPostback fires for any postback.
func OnAnyPostback(cb Answer) ListenerRule {
	return ListenerRule{sel: selectAnyPostback, callback: cb}
}

// OnQuickReply fires for a quick reply with the given payload.
func OnQuickReply(payload string, cb Answer) ListenerRule {
	return ListenerRule{sel: selectQuickReply, key: payload, callback: cb}
}

// OnAnyQuickReply fires for any quick reply.
func OnAnyQuickReply(cb Answer) ListenerRule {
	return ListenerRule{sel: selectAnyQuickReply, callback: cb}
}

// OnAttachment fires for an attachment message.
func OnAttachment(cb Answer) ListenerRule {
	return ListenerRule{sel: selectAttachment, callback: cb}
}

// OnPattern fires for a text message matched by any of the matchers.
func OnPattern(cb Answer, matchers ...match.Matcher) ListenerRule {
	return ListenerRule{sel: selectPattern, matchers: matchers, callback: cb}
}

// String renders the selector: "postback:BUY", "quick_reply", "attachment",
// "pattern:(yes|no)".
func (r ListenerRule) String() string {
	switch r.sel {
	case selectPostback:
		return string(event.KindPostback) + ":" + r.key
	case selectAnyPostback:
		return string(event.KindPostback)
	case selectQuickReply:
		return string(event.KindQuickReply) + ":" + r.key
	case selectAnyQuickReply:
		return string(event.KindQuickReply)
	case selectAttachment:
		return string(event.KindAttachment)
	case selectPattern:
		parts := make([]string, 0, len(r.matchers))
		for _, m := range r.matchers {
			if m != nil {
				parts = append(parts, m.String())
			}
		}
		return "pattern:" + strings.Join(parts, "|")
	default:
		return "invalid"
	}
}

func (r ListenerRule) valid() bool {
	if r.callback == nil || r.sel == 0 {
		return false
	}
	if r.sel == selectPattern {
		usable := 0
		for _, m := range r.matchers {
			if m == nil {
				continue
			}
			if !match.Valid(m) {
				return false
			}
			usable++
		}
		return usable > 0
	}
	return true
}

// specific reports whether r is the keyed selector for kind and key.
func (r ListenerRule) specific(kind event.Kind, key string) bool {
	switch kind {
	case event.KindPostback:
		return r.sel == selectPostback && r.key == key
	case event.KindQuickReply:
		return r.sel == selectQuickReply && r.key == key
	}
	return false
}

// generic reports whether r is the unkeyed selector for kind.
func (r ListenerRule) generic(kind event.Kind) bool {
	switch kind {
	case event.KindPostback:
		return r.sel == selectAnyPostback
	case event.KindQuickReply:
		return r.sel == selectAnyQuickReply
	}
	return false
}
