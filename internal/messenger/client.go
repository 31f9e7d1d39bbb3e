package messenger

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/garyellow/messenger-bot-go/internal/config"
	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/ratelimit"
)

// Sender delivers outgoing messages. Client implements it; tests use fakes.
type Sender interface {
	Send(ctx context.Context, to Recipient, msg Message, opts SendOptions) (*SendResult, error)
	SendAction(ctx context.Context, to Recipient, action Action) error
}

// Recipient addresses a message by page-scoped id, or by the user_ref of a
// checkbox-plugin optin.
type Recipient struct {
	ID      string `json:"id,omitempty"`
	UserRef string `json:"user_ref,omitempty"`
}

// To addresses a page-scoped user id.
func To(userID string) Recipient { return Recipient{ID: userID} }

func (r Recipient) valid() bool { return r.ID != "" || r.UserRef != "" }

// SendResult is the Send API response.
type SendResult struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// Profile is the subset of user profile fields the bot reads.
type Profile struct {
	ID         string  `json:"id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	ProfilePic string  `json:"profile_pic"`
	Locale     string  `json:"locale"`
	Timezone   float64 `json:"timezone"`
	Gender     string  `json:"gender"`
}

// ProfileFields is the field list requested from the User Profile API.
const ProfileFields = "first_name,last_name,profile_pic,locale,timezone,gender"

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL     string // versioned Graph API root
	AccessToken string
	Timeout     time.Duration
	MaxRetries  int
	// RPS caps outbound calls per second across all users (0 disables).
	RPS float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Client calls the Send API and Profile API through resty.
type Client struct {
	http       *resty.Client
	limiter    *ratelimit.Limiter
	maxRetries int
	log        *logger.Logger
	metrics    *metrics.Metrics
}

type sendRequest struct {
	Recipient     Recipient    `json:"recipient"`
	MessagingType string       `json:"messaging_type,omitempty"`
	Message       *wireMessage `json:"message,omitempty"`
	SenderAction  Action       `json:"sender_action,omitempty"`
}

type graphErrorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// NewClient creates a Graph API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.GraphRequest
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetQueryParam("access_token", cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	c := &Client{
		http:       rc,
		maxRetries: cfg.MaxRetries,
		log:        cfg.Logger.WithModule("messenger"),
		metrics:    cfg.Metrics,
	}
	if cfg.RPS > 0 {
		c.limiter = ratelimit.New(cfg.RPS, cfg.RPS)
	}
	return c
}

// Send delivers msg to the recipient, preceded by a typing indicator when
// opts.Typing is set.
func (c *Client) Send(ctx context.Context, to Recipient, msg Message, opts SendOptions) (*SendResult, error) {
	if !to.valid() {
		return nil, errors.NewValidationError("recipient", "id or user_ref is required")
	}
	if msg == nil {
		return nil, errors.NewValidationError("message", "must not be nil")
	}
	wm, err := msg.wire(opts)
	if err != nil {
		return nil, err
	}

	if opts.Typing {
		if err := c.TypingIndicator(ctx, to, TypingDuration(msg, opts)); err != nil {
			c.log.WithError(err).WarnContext(ctx, "typing indicator failed")
		}
	}

	var result SendResult
	body := sendRequest{Recipient: to, MessagingType: "RESPONSE", Message: wm}
	if err := c.do(ctx, http.MethodPost, "messages", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendAction sends a sender action such as typing_on or mark_seen.
func (c *Client) SendAction(ctx context.Context, to Recipient, action Action) error {
	if !to.valid() {
		return errors.NewValidationError("recipient", "id or user_ref is required")
	}
	return c.do(ctx, http.MethodPost, "messages", sendRequest{Recipient: to, SenderAction: action}, nil)
}

// TypingIndicator shows the typing indicator for d (capped at
// MaxTypingDuration) and then turns it off.
func (c *Client) TypingIndicator(ctx context.Context, to Recipient, d time.Duration) error {
	return typingIndicator(ctx, c, to, d)
}

func typingIndicator(ctx context.Context, s Sender, to Recipient, d time.Duration) error {
	if err := s.SendAction(ctx, to, ActionTypingOn); err != nil {
		return err
	}
	if err := sleep(ctx, min(max(d, 0), MaxTypingDuration)); err != nil {
		return err
	}
	return s.SendAction(ctx, to, ActionTypingOff)
}

type typist interface {
	TypingIndicator(ctx context.Context, to Recipient, d time.Duration) error
}

// TypingIndicator runs the typing_on, wait, typing_off sequence through any
// Sender. Senders with their own TypingIndicator, such as Outbox, run it.
func TypingIndicator(ctx context.Context, s Sender, to Recipient, d time.Duration) error {
	if t, ok := s.(typist); ok {
		return t.TypingIndicator(ctx, to, d)
	}
	return typingIndicator(ctx, s, to, d)
}

// UserProfile fetches the public profile of a page-scoped user id.
func (c *Client) UserProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userID", "must not be empty")
	}
	var p Profile
	err := c.call(ctx, "profile", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("userID", userID).
			SetQueryParam("fields", ProfileFields).
			SetResult(&p).
			SetError(&graphErrorBody{}).
			Get("/{userID}")
	})
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = userID
	}
	return &p, nil
}

// do sends a JSON request to /me/<endpoint>.
func (c *Client) do(ctx context.Context, method, endpoint string, body, result any) error {
	return c.call(ctx, endpoint, func() (*resty.Response, error) {
		req := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetError(&graphErrorBody{})
		if result != nil {
			req.SetResult(result)
		}
		return req.Execute(method, "/me/"+endpoint)
	})
}

// call applies the global limiter, retries transient failures and decodes
// Graph API errors.
func (c *Client) call(ctx context.Context, endpoint string, send func() (*resty.Response, error)) error {
	if c.limiter != nil {
		waited, err := c.limiter.Wait(ctx)
		c.metrics.RecordRateLimiterWait("graph", waited.Seconds())
		if err != nil {
			return fmt.Errorf("graph rate limit wait: %w", err)
		}
	}

	start := time.Now()
	onRetry := func(err error) {
		c.metrics.RecordGraphRequest(endpoint, "retry", time.Since(start).Seconds())
		c.log.WithError(err).DebugContext(ctx, "retrying graph api call", "endpoint", endpoint)
	}

	err := retryWithBackoff(ctx, c.maxRetries, config.GraphRetryInitial, config.GraphRetryMax, onRetry, func() error {
		resp, err := send()
		if err != nil {
			return fmt.Errorf("%s request: %w", endpoint, err)
		}
		if resp.IsError() {
			return graphError(endpoint, resp)
		}
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
		var ge *errors.GraphError
		if stderrors.As(err, &ge) {
			c.log.WarnContext(ctx, "graph api error",
				"endpoint", endpoint, "status", ge.StatusCode, "code", ge.Code, "message", ge.Message)
		}
	}
	c.metrics.RecordGraphRequest(endpoint, status, time.Since(start).Seconds())
	return err
}

func graphError(endpoint string, resp *resty.Response) error {
	ge := errors.NewGraphError(endpoint, resp.StatusCode(), 0, http.StatusText(resp.StatusCode()))
	if body, ok := resp.Error().(*graphErrorBody); ok && body.Error.Message != "" {
		ge.Code = body.Error.Code
		ge.Message = body.Error.Message
	}
	return ge
}
