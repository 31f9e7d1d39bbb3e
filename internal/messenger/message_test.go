package messenger

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/errors"
)

func TestNormalizePayload(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pizza", "PIZZA"},
		{"Café au lait", "CAFEAULAIT"},
		{"Hot-dog & fries!", "HOTDOGFRIES"},
		{"Crème brûlée 2", "CREMEBRULEE2"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePayload(tt.in))
		})
	}
	assert.Equal(t, "BOT_QR_PIZZA", QuickReplyPayload("pizza"))
	assert.Equal(t, "BOT_BUTTON_TALKTOAHUMAN", ButtonPayload("Talk to a human"))
}

func wireJSON(t *testing.T, msg Message, opts SendOptions) map[string]any {
	t.Helper()
	wm, err := msg.wire(opts)
	require.NoError(t, err)
	raw, err := json.Marshal(wm)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestText_QuickRepliesGetPayloads(t *testing.T) {
	out := wireJSON(t, Text{
		Text:         "What do you want to eat?",
		QuickReplies: append(QuickReplies("Hamburger"), QuickReply{Title: "Salad", Payload: "CUSTOM"}),
	}, SendOptions{})

	assert.Equal(t, "What do you want to eat?", out["text"])
	replies := out["quick_replies"].([]any)
	require.Len(t, replies, 2)
	first := replies[0].(map[string]any)
	assert.Equal(t, "text", first["content_type"])
	assert.Equal(t, "BOT_QR_HAMBURGER", first["payload"])
	assert.Equal(t, "CUSTOM", replies[1].(map[string]any)["payload"])
}

func TestButtons_Template(t *testing.T) {
	out := wireJSON(t, Buttons{
		Text:    "Need help?",
		Buttons: append(PostbackButtons("Talk to a human"), Button{Type: "web_url", Title: "Docs", URL: "https://example.com"}),
	}, SendOptions{})

	att := out["attachment"].(map[string]any)
	assert.Equal(t, "template", att["type"])
	payload := att["payload"].(map[string]any)
	assert.Equal(t, "button", payload["template_type"])
	buttons := payload["buttons"].([]any)
	require.Len(t, buttons, 2)
	assert.Equal(t, "postback", buttons[0].(map[string]any)["type"])
	assert.Equal(t, "BOT_BUTTON_TALKTOAHUMAN", buttons[0].(map[string]any)["payload"])
	assert.NotContains(t, buttons[1].(map[string]any), "payload")
}

func TestList_KeepsFirstButtonAndStyle(t *testing.T) {
	out := wireJSON(t, List{
		Elements: []Element{{Title: "One"}, {Title: "Two"}},
		Buttons:  PostbackButtons("More", "Ignored"),
	}, SendOptions{TopElementStyle: "compact"})

	payload := out["attachment"].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "list", payload["template_type"])
	assert.Equal(t, "compact", payload["top_element_style"])
	assert.Len(t, payload["buttons"].([]any), 1)
}

func TestCards_AspectRatio(t *testing.T) {
	out := wireJSON(t, Cards{Elements: []Element{{Title: "Card", Buttons: PostbackButtons("Pick")}}},
		SendOptions{ImageAspectRatio: "square"})

	payload := out["attachment"].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "generic", payload["template_type"])
	assert.Equal(t, "square", payload["image_aspect_ratio"])
	el := payload["elements"].([]any)[0].(map[string]any)
	assert.Equal(t, "BOT_BUTTON_PICK", el["buttons"].([]any)[0].(map[string]any)["payload"])
}

func TestAttachment(t *testing.T) {
	out := wireJSON(t, Attachment{Type: "image", URL: "https://example.com/cat.png"}, SendOptions{})
	att := out["attachment"].(map[string]any)
	assert.Equal(t, "image", att["type"])
	assert.Equal(t, "https://example.com/cat.png", att["payload"].(map[string]any)["url"])
}

func TestInvalidMessages(t *testing.T) {
	for name, msg := range map[string]Message{
		"empty text":       Text{},
		"buttons no text":  Buttons{Buttons: PostbackButtons("x")},
		"attachment type":  Attachment{Type: "sticker", URL: "u"},
		"attachment url":   Attachment{Type: "image"},
		"list no elements": List{},
		"cards no element": Cards{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := msg.wire(SendOptions{})
			assert.True(t, errors.IsInvalidInput(err))
		})
	}
}

func TestTypingDuration(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, TypingDuration(Text{Text: "héllo"}, SendOptions{}))
	assert.Equal(t, time.Second, TypingDuration(Cards{}, SendOptions{}))
	assert.Equal(t, 3*time.Second, TypingDuration(Text{Text: "x"}, SendOptions{TypingDuration: 3 * time.Second}))
	assert.Equal(t, MaxTypingDuration, TypingDuration(Text{Text: "x"}, SendOptions{TypingDuration: time.Minute}))
}
