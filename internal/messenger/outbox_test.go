package messenger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/logger"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	gate  chan struct{}
	fails bool
}

func (s *recordingSender) Send(_ context.Context, to Recipient, msg Message, _ SendOptions) (*SendResult, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	text := ""
	if t, ok := msg.(Text); ok {
		text = t.Text
	}
	s.sent = append(s.sent, to.ID+":"+text)
	if s.fails {
		return nil, errors.New("graph down")
	}
	return &SendResult{RecipientID: to.ID}, nil
}

func (s *recordingSender) SendAction(_ context.Context, to Recipient, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to.ID+":"+string(action))
	return nil
}

func (s *recordingSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func TestOutbox_PreservesPerRecipientOrder(t *testing.T) {
	next := &recordingSender{}
	o := NewOutbox(next, logger.NewWithWriter("error", &bytes.Buffer{}), nil)

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		res, err := o.Send(ctx, To("U1"), Text{Text: text}, SendOptions{})
		require.NoError(t, err)
		assert.Nil(t, res)
	}
	require.NoError(t, o.SendAction(ctx, To("U1"), ActionTypingOff))

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, o.Close(closeCtx))

	assert.Equal(t, []string{"U1:one", "U1:two", "U1:three", "U1:typing_off"}, next.Sent())
	assert.Zero(t, o.Pending())
}

func TestOutbox_SendReturnsBeforeDelivery(t *testing.T) {
	next := &recordingSender{gate: make(chan struct{})}
	o := NewOutbox(next, logger.NewWithWriter("error", &bytes.Buffer{}), nil)

	_, err := o.Send(context.Background(), To("U1"), Text{Text: "slow"}, SendOptions{})
	require.NoError(t, err)
	assert.Empty(t, next.Sent())
	assert.Equal(t, 1, o.Pending())

	close(next.gate)
	require.NoError(t, o.Close(context.Background()))
	assert.Equal(t, []string{"U1:slow"}, next.Sent())
}

func TestOutbox_ClosedRejectsSends(t *testing.T) {
	o := NewOutbox(&recordingSender{}, logger.NewWithWriter("error", &bytes.Buffer{}), nil)
	require.NoError(t, o.Close(context.Background()))

	_, err := o.Send(context.Background(), To("U1"), Text{Text: "late"}, SendOptions{})
	assert.ErrorIs(t, err, ErrOutboxClosed)
}

func TestOutbox_LogsDeliveryErrors(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutbox(&recordingSender{fails: true}, logger.NewWithWriter("error", &buf), nil)

	_, err := o.Send(context.Background(), To("U1"), Text{Text: "x"}, SendOptions{})
	require.NoError(t, err)
	require.NoError(t, o.Close(context.Background()))

	assert.Contains(t, buf.String(), "deferred send failed")
	assert.Contains(t, buf.String(), "graph down")
}

func TestOutbox_TypingIndicatorRunsOnWorker(t *testing.T) {
	next := &recordingSender{}
	o := NewOutbox(next, logger.NewWithWriter("error", &bytes.Buffer{}), nil)

	require.NoError(t, TypingIndicator(context.Background(), o, To("U1"), time.Millisecond))
	_, err := o.Send(context.Background(), To("U1"), Text{Text: "done"}, SendOptions{})
	require.NoError(t, err)
	require.NoError(t, o.Close(context.Background()))

	assert.Equal(t, []string{"U1:typing_on", "U1:typing_off", "U1:done"}, next.Sent())
}
