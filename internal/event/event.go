// Package event turns Messenger webhook notifications into typed events.
package event

import (
	"github.com/garyellow/messenger-bot-go/internal/errors"
)

// Kind is the type of a classified event.
type Kind string

const (
	KindMessage        Kind = "message"
	KindAttachment     Kind = "attachment"
	KindPostback       Kind = "postback"
	KindQuickReply     Kind = "quick_reply"
	KindDelivery       Kind = "delivery"
	KindRead           Kind = "read"
	KindOptin          Kind = "optin"
	KindAccountLinking Kind = "account_linking"
	KindReferral       Kind = "referral"
)

// Event is one classified messaging item.
// Events are values and are never mutated after classification.
type Event struct {
	Kind Kind
	// UserID is the sender's page-scoped id. It is empty for checkbox-plugin
	// optins, which carry UserRef instead.
	UserID  string
	UserRef string
	// Text is the message text for message events.
	Text string
	// PayloadKey is the postback or quick-reply payload.
	PayloadKey string
	IsEcho     bool
	// Raw is the item the event was produced from. Events derived from the same
	// item share the pointer.
	Raw *Messaging
}

// HasQuickReply reports whether a message event carries a quick-reply selection.
func (e Event) HasQuickReply() bool {
	return e.Kind == KindMessage && e.PayloadKey != ""
}

// Attachments returns the attachments of the underlying message, if any.
func (e Event) Attachments() []Attachment {
	if e.Raw == nil || e.Raw.Message == nil {
		return nil
	}
	return e.Raw.Message.Attachments
}

// Name is the notification name announced for the event:
// "event:<kind>" or, with a payload key, "event:<kind>:<key>".
func (e Event) Name() string {
	return Name(e.Kind, "")
}

// KeyedName is Name with the payload key appended when one is present.
func (e Event) KeyedName() string {
	return Name(e.Kind, e.PayloadKey)
}

// Name builds a notification name for kind and optional key.
func Name(kind Kind, key string) string {
	if key == "" {
		return "event:" + string(kind)
	}
	return "event:" + string(kind) + ":" + key
}

// Classifier converts a notification into an ordered event list.
type Classifier struct {
	// BroadcastEchoes keeps messages sent by the page itself.
	BroadcastEchoes bool
}

// Classify walks every entry and messaging item in order. Classification is
// all-or-nothing: an unrecognized item fails the whole batch so nothing is
// dispatched.
func (c Classifier) Classify(env *Envelope) ([]Event, error) {
	if env == nil || env.Entry == nil {
		return nil, errors.NewClassificationError(-1, -1, errors.ErrMissingEntry)
	}

	var events []Event
	for ei := range env.Entry {
		items := env.Entry[ei].Messaging
		for mi := range items {
			item := &items[mi]
			produced, ok := c.classifyItem(item)
			if !ok {
				return nil, errors.NewClassificationError(ei, mi, errors.ErrUnknownEvent)
			}
			events = append(events, produced...)
		}
	}
	return events, nil
}

func (c Classifier) classifyItem(item *Messaging) ([]Event, bool) {
	base := Event{Raw: item}
	if item.Sender != nil {
		base.UserID = item.Sender.ID
	}

	if msg := item.Message; msg != nil && msg.IsEcho && !c.BroadcastEchoes {
		return nil, true
	}

	switch {
	case item.Optin != nil:
		ev := base
		ev.Kind = KindOptin
		if ev.UserID == "" {
			ev.UserRef = item.Optin.UserRef
		}
		return []Event{ev}, true

	case item.Message != nil && item.Message.Text != "":
		msg := base
		msg.Kind = KindMessage
		msg.Text = item.Message.Text
		msg.IsEcho = item.Message.IsEcho
		if qr := item.Message.QuickReply; qr != nil {
			msg.PayloadKey = qr.Payload
			reply := msg
			reply.Kind = KindQuickReply
			return []Event{msg, reply}, true
		}
		return []Event{msg}, true

	case item.Message != nil && len(item.Message.Attachments) > 0:
		ev := base
		ev.Kind = KindAttachment
		ev.IsEcho = item.Message.IsEcho
		return []Event{ev}, true

	case item.Postback != nil:
		ev := base
		ev.Kind = KindPostback
		ev.PayloadKey = item.Postback.Payload
		return []Event{ev}, true

	case item.Delivery != nil:
		return []Event{withKind(base, KindDelivery)}, true
	case item.Read != nil:
		return []Event{withKind(base, KindRead)}, true
	case item.AccountLinking != nil:
		return []Event{withKind(base, KindAccountLinking)}, true
	case item.Referral != nil:
		return []Event{withKind(base, KindReferral)}, true
	}
	return nil, false
}

func withKind(ev Event, kind Kind) Event {
	ev.Kind = kind
	return ev
}
