package chat

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

type sent struct {
	to  messenger.Recipient
	msg messenger.Message
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	actions []messenger.Action
	failOn  int
}

func (f *fakeSender) Send(_ context.Context, to messenger.Recipient, msg messenger.Message, _ messenger.SendOptions) (*messenger.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, msg: msg})
	if f.failOn > 0 && len(f.sent) == f.failOn {
		return nil, errors.New("send failed")
	}
	return &messenger.SendResult{}, nil
}

func (f *fakeSender) SendAction(_ context.Context, _ messenger.Recipient, a messenger.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return nil
}

type fakeProfiles map[string]*messenger.Profile

func (f fakeProfiles) Lookup(_ context.Context, userID string) (*messenger.Profile, error) {
	p, ok := f[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func testDeps() (Deps, *fakeSender) {
	log := logger.NewWithWriter("error", &bytes.Buffer{})
	s := &fakeSender{}
	h := hooks.NewManager(log, nil)
	return Deps{
		Sender:        s,
		Profiles:      fakeProfiles{"U1": {ID: "U1", FirstName: "Ann"}},
		Conversations: session.NewRegistry(session.Deps{Sender: s, Hooks: h, Logger: log}, session.PolicyAllowConcurrent),
		Hooks:         h,
		Logger:        log,
	}, s
}

func TestChat_Say(t *testing.T) {
	deps, s := testDeps()
	c := New(messenger.To("U1"), deps)

	require.NoError(t, c.SayText(context.Background(), "hi", "Yes", "No"))

	require.Len(t, s.sent, 1)
	assert.Equal(t, "U1", s.sent[0].to.ID)
	txt := s.sent[0].msg.(messenger.Text)
	assert.Equal(t, "hi", txt.Text)
	assert.Len(t, txt.QuickReplies, 2)
}

func TestChat_SayAllStopsAtFirstFailure(t *testing.T) {
	deps, s := testDeps()
	s.failOn = 2
	c := New(messenger.To("U1"), deps)

	err := c.SayAll(context.Background(), []messenger.Message{
		messenger.Text{Text: "one"},
		messenger.Text{Text: "two"},
		messenger.Text{Text: "three"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 2 of 3")
	assert.Len(t, s.sent, 2)
}

func TestChat_ForEventUsesUserRefForOptins(t *testing.T) {
	deps, s := testDeps()
	c := ForEvent(event.Event{Kind: event.KindOptin, UserRef: "ref-1"}, deps)

	require.NoError(t, c.SayText(context.Background(), "thanks"))
	assert.Equal(t, messenger.Recipient{UserRef: "ref-1"}, s.sent[0].to)
	assert.Empty(t, c.UserID())

	_, err := c.UserProfile(context.Background())
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestChat_UserProfile(t *testing.T) {
	deps, _ := testDeps()

	p, err := New(messenger.To("U1"), deps).UserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.FirstName)

	_, err = New(messenger.To("U9"), deps).UserProfile(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChat_ReceiptCallbacksFireOnceForThisUser(t *testing.T) {
	deps, _ := testDeps()
	c := New(messenger.To("U1"), deps)

	var delivered int
	require.NoError(t, c.Say(context.Background(), messenger.Text{Text: "hi"}, SayOptions{
		OnDelivery: func(context.Context, hooks.Payload) error {
			delivered++
			return nil
		},
	}))

	name := event.Name(event.KindDelivery, "")
	deps.Hooks.Emit(context.Background(), hooks.Payload{Name: name, UserID: "U2"})
	assert.Zero(t, delivered)

	deps.Hooks.Emit(context.Background(), hooks.Payload{Name: name, UserID: "U1"})
	deps.Hooks.Emit(context.Background(), hooks.Payload{Name: name, UserID: "U1"})
	assert.Equal(t, 1, delivered)
}

func TestChat_ConversationOpensSession(t *testing.T) {
	deps, s := testDeps()
	c := New(messenger.To("U1"), deps)

	sess, err := c.Conversation(context.Background(), func(ctx context.Context, sess *session.Session) {
		require.NoError(t, sess.Ask(ctx, session.Text("name?"), func(context.Context, *session.Session, event.Event, session.Dispatch) {}))
	})
	require.NoError(t, err)
	assert.True(t, sess.IsWaiting())
	assert.Equal(t, "name?", s.sent[0].msg.(messenger.Text).Text)
}

func TestChat_SendActionAndTyping(t *testing.T) {
	deps, s := testDeps()
	c := New(messenger.To("U1"), deps)

	require.NoError(t, c.SendAction(context.Background(), messenger.ActionMarkSeen))
	require.NoError(t, c.TypingIndicator(context.Background(), 0))

	assert.Equal(t, messenger.ActionMarkSeen, s.actions[0])
	assert.Contains(t, s.actions, messenger.ActionTypingOn)
}
