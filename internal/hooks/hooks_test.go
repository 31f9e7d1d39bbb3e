package hooks

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/logger"
)

func testManager() (*Manager, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewManager(logger.NewWithWriter("debug", &buf), nil), &buf
}

func TestManager_EmitInRegistrationOrder(t *testing.T) {
	m, _ := testManager()

	var order []string
	m.On("event:postback", "first", func(_ context.Context, p Payload) error {
		order = append(order, "first:"+p.Event.PayloadKey)
		return nil
	})
	m.On("event:postback", "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	ev := event.Event{Kind: event.KindPostback, PayloadKey: "BUY"}
	m.Emit(context.Background(), Payload{Name: "event:postback", Event: &ev})

	assert.Equal(t, []string{"first:BUY", "second"}, order)
}

func TestManager_ErrorsAndPanicsDoNotStopDispatch(t *testing.T) {
	m, buf := testManager()

	var reached bool
	m.On(SessionEnded, "failing", func(context.Context, Payload) error { return errors.New("archive down") })
	m.On(SessionEnded, "panicking", func(context.Context, Payload) error { panic("boom") })
	m.On(SessionEnded, "last", func(context.Context, Payload) error {
		reached = true
		return nil
	})

	require.NotPanics(t, func() {
		m.Emit(context.Background(), Payload{Name: SessionEnded})
	})
	assert.True(t, reached)
	assert.Contains(t, buf.String(), "archive down")
	assert.Contains(t, buf.String(), "hook handler panicked")
}

func TestManager_Once(t *testing.T) {
	m, _ := testManager()

	calls := 0
	m.Once("event:delivery", "", func(context.Context, Payload) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, m.Count("event:delivery"))

	m.Emit(context.Background(), Payload{Name: "event:delivery"})
	m.Emit(context.Background(), Payload{Name: "event:delivery"})

	assert.Equal(t, 1, calls)
	assert.Zero(t, m.Count("event:delivery"))
}

func TestManager_OnceIfWaitsForMatchingPayload(t *testing.T) {
	m, _ := testManager()

	var got []string
	m.OnceIf("event:read", "read-U2", func(p Payload) bool { return p.UserID == "U2" },
		func(_ context.Context, p Payload) error {
			got = append(got, p.UserID)
			return nil
		})

	m.Emit(context.Background(), Payload{Name: "event:read", UserID: "U1"})
	assert.Empty(t, got)
	assert.Equal(t, 1, m.Count("event:read"))

	m.Emit(context.Background(), Payload{Name: "event:read", UserID: "U2"})
	m.Emit(context.Background(), Payload{Name: "event:read", UserID: "U2"})
	assert.Equal(t, []string{"U2"}, got)
}

func TestManager_Off(t *testing.T) {
	m, _ := testManager()

	called := false
	m.On(SessionStarted, "audit", func(context.Context, Payload) error {
		called = true
		return nil
	})
	m.On(SessionStarted, "nil-handler", nil)
	assert.Equal(t, 1, m.Count(SessionStarted))
	assert.Equal(t, []string{SessionStarted}, m.Names())

	m.Off(SessionStarted, "audit")
	m.Emit(context.Background(), Payload{Name: SessionStarted})

	assert.False(t, called)
	assert.Empty(t, m.Names())
}

func TestManager_HandlerMayRegisterDuringEmit(t *testing.T) {
	m, _ := testManager()

	m.On(SessionStarted, "outer", func(context.Context, Payload) error {
		m.On(SessionStarted, "inner", func(context.Context, Payload) error { return nil })
		return nil
	})

	require.NotPanics(t, func() {
		m.Emit(context.Background(), Payload{Name: SessionStarted})
	})
	assert.Equal(t, 2, m.Count(SessionStarted))
}
