// Package usage answers "how many messages do I have left" questions from
// the per-user rate limiter.
package usage

import (
	"context"
	"fmt"
	"math"

	"github.com/garyellow/messenger-bot-go/internal/bot"
	"github.com/garyellow/messenger-bot-go/internal/chat"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hear"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/match"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/ratelimit"
)

// Module constants
const (
	ModuleName = "usage"

	explainTitle = "What counts?"
)

var usageMatchers = append(
	match.Keywords("usage", "quota", "limit"),
	match.MustPattern(`(?i)^how many messages( do i have)?( left)?\??$`),
)

// Handler handles usage queries.
type Handler struct {
	userLimiter *ratelimit.KeyedLimiter
	logger      *logger.Logger
}

// NewHandler creates a usage handler. userLimiter may be nil when per-user
// limiting is disabled.
func NewHandler(userLimiter *ratelimit.KeyedLimiter, log *logger.Logger) *Handler {
	return &Handler{
		userLimiter: userLimiter,
		logger:      log.WithModule(ModuleName),
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// Register installs the usage query and the explanation quick reply.
func (h *Handler) Register(b *bot.Bot) error {
	if err := b.Hear(h.handleQuery, usageMatchers...); err != nil {
		return err
	}
	b.OnQuickReply(messenger.QuickReplyPayload(explainTitle), h.handleExplain)
	return nil
}

func (h *Handler) handleQuery(ctx context.Context, _ event.Event, c *chat.Chat, _ hear.Result) {
	h.logger.DebugContext(ctx, "Handling usage query")
	if err := c.SayText(ctx, h.Status(c.UserID()), explainTitle); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to send usage status")
	}
}

func (h *Handler) handleExplain(ctx context.Context, _ event.Event, c *chat.Chat, _ bool) {
	if err := c.SayText(ctx, Explanation); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to send usage explanation")
	}
}

// Explanation describes which events consume quota.
const Explanation = "Every message, attachment and button press you send uses one unit. " +
	"Delivery and read receipts are free."

// Status renders the remaining quota of userID.
func (h *Handler) Status(userID string) string {
	if h.userLimiter == nil {
		return "There is no message limit right now."
	}
	cfg := h.userLimiter.Config()
	available := int(math.Floor(h.userLimiter.Available(userID)))
	burst := int(cfg.Burst)

	status := fmt.Sprintf("You can send %d of %d messages right now.", available, burst)
	if cfg.RefillRate > 0 && available < burst {
		secs := int(math.Ceil(1 / cfg.RefillRate))
		status += fmt.Sprintf(" One more becomes available every %d s.", secs)
	}
	return status
}
