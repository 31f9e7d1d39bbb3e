package messenger

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/logger"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type graphStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func (s *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.handler != nil {
		s.handler(w, rec)
		return
	}
	_, _ = w.Write([]byte(`{"recipient_id":"U1","message_id":"mid.1"}`))
}

func (s *graphStub) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func newTestClient(t *testing.T, stub *graphStub, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:     srv.URL + "/v21.0",
		AccessToken: "page-token",
		MaxRetries:  retries,
		Logger:      logger.NewWithWriter("error", &bytes.Buffer{}),
	})
}

func TestClient_SendText(t *testing.T) {
	stub := &graphStub{}
	c := newTestClient(t, stub, 0)

	res, err := c.Send(context.Background(), To("U1"), Text{Text: "hi", QuickReplies: QuickReplies("Yes")}, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mid.1", res.MessageID)

	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/v21.0/me/messages", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "access_token=page-token")
	assert.Equal(t, "U1", reqs[0].Body["recipient"].(map[string]any)["id"])
	msg := reqs[0].Body["message"].(map[string]any)
	assert.Equal(t, "hi", msg["text"])
	assert.Equal(t, "BOT_QR_YES", msg["quick_replies"].([]any)[0].(map[string]any)["payload"])
}

func TestClient_SendWithTyping(t *testing.T) {
	stub := &graphStub{}
	c := newTestClient(t, stub, 0)

	_, err := c.Send(context.Background(), To("U1"), Text{Text: "ok"}, SendOptions{Typing: true, TypingDuration: time.Millisecond})
	require.NoError(t, err)

	reqs := stub.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "typing_on", reqs[0].Body["sender_action"])
	assert.Equal(t, "typing_off", reqs[1].Body["sender_action"])
	assert.Contains(t, reqs[2].Body, "message")
}

func TestClient_GraphErrorDecoded(t *testing.T) {
	stub := &graphStub{handler: func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#100) No matching user found","type":"OAuthException","code":100}}`))
	}}
	c := newTestClient(t, stub, 3)

	_, err := c.Send(context.Background(), To("U404"), Text{Text: "hi"}, SendOptions{})
	require.Error(t, err)

	var ge *errors.GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)
	assert.Equal(t, 100, ge.Code)
	assert.Equal(t, "messages", ge.Endpoint)
	assert.Len(t, stub.Requests(), 1, "client errors are not retried")
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	stub := &graphStub{handler: func(w http.ResponseWriter, _ recordedRequest) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"try later","code":2}}`))
			return
		}
		_, _ = w.Write([]byte(`{"recipient_id":"U1","message_id":"mid.2"}`))
	}}
	c := newTestClient(t, stub, 2)

	res, err := c.Send(context.Background(), To("U1"), Text{Text: "hi"}, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mid.2", res.MessageID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	stub := &graphStub{}
	c := newTestClient(t, stub, 0)

	_, err := c.Send(context.Background(), Recipient{}, Text{Text: "hi"}, SendOptions{})
	assert.True(t, errors.IsInvalidInput(err))
	_, err = c.Send(context.Background(), To("U1"), nil, SendOptions{})
	assert.True(t, errors.IsInvalidInput(err))
	_, err = c.Send(context.Background(), To("U1"), Text{}, SendOptions{})
	assert.True(t, errors.IsInvalidInput(err))
	assert.Empty(t, stub.Requests())
}

func TestClient_UserProfile(t *testing.T) {
	stub := &graphStub{handler: func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"first_name":"Ann","last_name":"Lee","locale":"en_US","timezone":-7}`))
	}}
	c := newTestClient(t, stub, 0)

	p, err := c.UserProfile(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", p.ID)
	assert.Equal(t, "Ann", p.FirstName)
	assert.InDelta(t, -7.0, p.Timezone, 0.0001)

	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/v21.0/U1", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "fields=first_name%2Clast_name")
}

func TestClient_ProfileAPI(t *testing.T) {
	stub := &graphStub{handler: func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}}
	c := newTestClient(t, stub, 0)
	ctx := context.Background()

	require.NoError(t, c.SetGreetingText(ctx, "Welcome!"))
	require.NoError(t, c.SetGetStartedButton(ctx, ""))
	require.NoError(t, c.SetPersistentMenu(ctx, PostbackButtons("Help"), true))
	require.NoError(t, c.DeleteGetStartedButton(ctx))
	require.NoError(t, c.DeletePersistentMenu(ctx))
	assert.Error(t, c.SetGreetingText(ctx, ""))

	reqs := stub.Requests()
	require.Len(t, reqs, 5)
	for _, r := range reqs {
		assert.Equal(t, "/v21.0/me/messenger_profile", r.Path)
	}
	assert.Equal(t, "Welcome!", reqs[0].Body["greeting"].([]any)[0].(map[string]any)["text"])
	assert.Equal(t, GetStartedPayload, reqs[1].Body["get_started"].(map[string]any)["payload"])
	menu := reqs[2].Body["persistent_menu"].([]any)[0].(map[string]any)
	assert.Equal(t, true, menu["composer_input_disabled"])
	assert.Equal(t, "BOT_BUTTON_HELP", menu["call_to_actions"].([]any)[0].(map[string]any)["payload"])
	assert.Equal(t, http.MethodDelete, reqs[3].Method)
	assert.Equal(t, http.MethodDelete, reqs[4].Method)
}

func TestClient_RateLimiterRespectsContext(t *testing.T) {
	stub := &graphStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()
	c := NewClient(ClientConfig{
		BaseURL: srv.URL,
		RPS:     1,
		Logger:  logger.NewWithWriter("error", &bytes.Buffer{}),
	})

	require.NoError(t, c.SendAction(context.Background(), To("U1"), ActionMarkSeen))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.SendAction(ctx, To("U1"), ActionMarkSeen)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, stub.Requests(), 1)
}
