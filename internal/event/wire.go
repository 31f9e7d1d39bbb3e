package event

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Envelope is a Messenger webhook notification.
// A nil Entry slice means the "entry" key was absent.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the messaging items delivered for one page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is one raw item of an entry. Exactly one of the pointer fields
// is expected to be set.
type Messaging struct {
	Sender         *Party          `json:"sender,omitempty"`
	Recipient      *Party          `json:"recipient,omitempty"`
	Timestamp      int64           `json:"timestamp,omitempty"`
	Message        *Message        `json:"message,omitempty"`
	Postback       *Postback       `json:"postback,omitempty"`
	Optin          *Optin          `json:"optin,omitempty"`
	Delivery       *Delivery       `json:"delivery,omitempty"`
	Read           *Read           `json:"read,omitempty"`
	AccountLinking *AccountLinking `json:"account_linking,omitempty"`
	Referral       *Referral       `json:"referral,omitempty"`
}

// Party identifies a sender or recipient by page-scoped id.
type Party struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string       `json:"mid,omitempty"`
	Text        string       `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	AppID       int64        `json:"app_id,omitempty"`
	Metadata    string       `json:"metadata,omitempty"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type QuickReply struct {
	Payload string `json:"payload"`
}

type Attachment struct {
	Type    string             `json:"type"`
	Payload *AttachmentPayload `json:"payload,omitempty"`
}

type AttachmentPayload struct {
	URL         string       `json:"url,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	StickerID   int64        `json:"sticker_id,omitempty"`
}

type Coordinates struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type Postback struct {
	Title    string    `json:"title,omitempty"`
	Payload  string    `json:"payload"`
	Referral *Referral `json:"referral,omitempty"`
}

type Optin struct {
	Ref     string `json:"ref,omitempty"`
	UserRef string `json:"user_ref,omitempty"`
}

type Delivery struct {
	MIDs      []string `json:"mids,omitempty"`
	Watermark int64    `json:"watermark"`
}

type Read struct {
	Watermark int64 `json:"watermark"`
}

type AccountLinking struct {
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

type Referral struct {
	Ref    string `json:"ref,omitempty"`
	Source string `json:"source,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Decode parses a webhook notification body.
func Decode(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("decode webhook: empty body")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &env, nil
}
