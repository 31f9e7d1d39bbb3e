package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/garyellow/messenger-bot-go/internal/errors"
)

func classify(t *testing.T, c Classifier, body string) []Event {
	t.Helper()
	env, err := Decode([]byte(body))
	require.NoError(t, err)
	events, err := c.Classify(env)
	require.NoError(t, err)
	return events
}

func TestClassify_Kinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		item string
		want Kind
		key  string
	}{
		{"text message", `{"sender":{"id":"U1"},"message":{"mid":"m1","text":"hello"}}`, KindMessage, ""},
		{"attachment", `{"sender":{"id":"U1"},"message":{"attachments":[{"type":"image","payload":{"url":"https://x/y.png"}}]}}`, KindAttachment, ""},
		{"postback", `{"sender":{"id":"U1"},"postback":{"title":"Buy","payload":"BUY"}}`, KindPostback, "BUY"},
		{"delivery", `{"sender":{"id":"U1"},"delivery":{"mids":["m1"],"watermark":1}}`, KindDelivery, ""},
		{"read", `{"sender":{"id":"U1"},"read":{"watermark":1}}`, KindRead, ""},
		{"optin", `{"sender":{"id":"U1"},"optin":{"ref":"landing"}}`, KindOptin, ""},
		{"account linking", `{"sender":{"id":"U1"},"account_linking":{"status":"linked"}}`, KindAccountLinking, ""},
		{"referral", `{"sender":{"id":"U1"},"referral":{"ref":"ad","source":"ADS"}}`, KindReferral, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := classify(t, Classifier{}, `{"object":"page","entry":[{"id":"P","messaging":[`+tt.item+`]}]}`)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Kind)
			assert.Equal(t, "U1", events[0].UserID)
			assert.Equal(t, tt.key, events[0].PayloadKey)
			assert.NotNil(t, events[0].Raw)
		})
	}
}

func TestClassify_QuickReplySynthesizesSecondEvent(t *testing.T) {
	t.Parallel()
	events := classify(t, Classifier{}, `{"object":"page","entry":[{"messaging":[
		{"sender":{"id":"U1"},"message":{"text":"Yes","quick_reply":{"payload":"YES"}}}
	]}]}`)

	require.Len(t, events, 2)
	assert.Equal(t, KindMessage, events[0].Kind)
	assert.Equal(t, "YES", events[0].PayloadKey)
	assert.True(t, events[0].HasQuickReply())
	assert.Equal(t, KindQuickReply, events[1].Kind)
	assert.Equal(t, "YES", events[1].PayloadKey)
	assert.Equal(t, "Yes", events[1].Text)
	assert.Same(t, events[0].Raw, events[1].Raw)
}

func TestClassify_EchoSuppression(t *testing.T) {
	t.Parallel()
	body := `{"object":"page","entry":[{"messaging":[
		{"sender":{"id":"PAGE"},"message":{"text":"sent by bot","is_echo":true}},
		{"sender":{"id":"U1"},"message":{"text":"hi"}}
	]}]}`

	events := classify(t, Classifier{}, body)
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Text)

	events = classify(t, Classifier{BroadcastEchoes: true}, body)
	require.Len(t, events, 2)
	assert.True(t, events[0].IsEcho)
	assert.False(t, events[1].IsEcho)
}

func TestClassify_OptinUserRef(t *testing.T) {
	t.Parallel()
	events := classify(t, Classifier{}, `{"object":"page","entry":[{"messaging":[
		{"recipient":{"id":"PAGE"},"optin":{"ref":"cart","user_ref":"ref-42"}}
	]}]}`)

	require.Len(t, events, 1)
	assert.Empty(t, events[0].UserID)
	assert.Equal(t, "ref-42", events[0].UserRef)
}

func TestClassify_ArrivalOrderAcrossEntries(t *testing.T) {
	t.Parallel()
	events := classify(t, Classifier{}, `{"object":"page","entry":[
		{"messaging":[{"sender":{"id":"A"},"message":{"text":"1"}},{"sender":{"id":"B"},"read":{"watermark":2}}]},
		{"messaging":[{"sender":{"id":"C"},"postback":{"payload":"P"}}]}
	]}`)

	require.Len(t, events, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{events[0].UserID, events[1].UserID, events[2].UserID})
}

func TestClassify_MissingEntry(t *testing.T) {
	t.Parallel()
	env, err := Decode([]byte(`{"object":"page"}`))
	require.NoError(t, err)

	events, err := Classifier{}.Classify(env)
	assert.Nil(t, events)
	assert.ErrorIs(t, err, apperrors.ErrMissingEntry)

	// An empty batch is valid.
	env, err = Decode([]byte(`{"object":"page","entry":[]}`))
	require.NoError(t, err)
	events, err = Classifier{}.Classify(env)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClassify_UnknownItemFailsWholeBatch(t *testing.T) {
	t.Parallel()
	env, err := Decode([]byte(`{"object":"page","entry":[{"messaging":[
		{"sender":{"id":"U1"},"message":{"text":"ok"}},
		{"sender":{"id":"U1"},"reaction":{"emoji":"x"}}
	]}]}`))
	require.NoError(t, err)

	events, err := Classifier{}.Classify(env)
	assert.Nil(t, events, "no partial batch")

	var ce *apperrors.ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Entry)
	assert.Equal(t, 1, ce.Item)
	assert.ErrorIs(t, err, apperrors.ErrUnknownEvent)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"object":`))
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	t.Parallel()
	ev := Event{Kind: KindPostback, PayloadKey: "BUY"}
	assert.Equal(t, "event:postback", ev.Name())
	assert.Equal(t, "event:postback:BUY", ev.KeyedName())
	assert.Equal(t, "event:read", Event{Kind: KindRead}.KeyedName())
}
