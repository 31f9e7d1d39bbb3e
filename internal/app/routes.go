package app

import (
	"context"
	"net/http"
	"strconv"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/messenger-bot-go/internal/config"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
	"github.com/garyellow/messenger-bot-go/internal/session"
)

const maxArchiveLimit = 500

func (a *Application) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		// Recovery above catches the re-panic after the event is reported.
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware(), loggingMiddleware(a.logger))

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)

	router.GET("/webhook", a.webhookHandler.Verify)
	router.POST("/webhook", a.webhookHandler.Handle)

	auth := basicAuthMiddleware("metrics", a.cfg.MetricsAuthEnabled, a.cfg.MetricsUsername, a.cfg.MetricsPassword)
	router.GET("/metrics", auth, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	admin := router.Group("/admin", auth)
	admin.GET("/sessions", a.listSessions)
	admin.GET("/sessions/archive", a.listArchivedSessions)

	return router
}

// livenessCheck reports that the process is up. It touches no dependencies.
func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheck reports whether the service can take traffic.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	body := gin.H{
		"status":   "ready",
		"database": "connected",
	}
	if a.bot != nil {
		body["sessions"] = a.bot.Sessions().Len()
		body["modules"] = a.bot.Modules()
	}
	if a.outbox != nil {
		body["outbox_pending"] = a.outbox.Pending()
	}
	c.JSON(http.StatusOK, body)
}

// listSessions returns snapshots of the live conversation sessions,
// optionally filtered by ?user_id=.
func (a *Application) listSessions(c *gin.Context) {
	var active []*session.Session
	if userID := c.Query("user_id"); userID != "" {
		active = a.bot.Sessions().ForUser(userID)
	} else {
		active = a.bot.Sessions().Active()
	}

	snapshots := make([]session.Snapshot, 0, len(active))
	for _, s := range active {
		snapshots = append(snapshots, s.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"count": len(snapshots), "sessions": snapshots})
}

// listArchivedSessions returns ended sessions, newest first.
func (a *Application) listArchivedSessions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxArchiveLimit)
	}

	records, err := a.db.ListArchivedSessions(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		a.logger.WithError(err).Error("Failed to list archived sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		var snapshot json.RawMessage
		if len(r.Snapshot) > 0 {
			snapshot = r.Snapshot
		}
		out = append(out, gin.H{
			"id":          r.ID,
			"user_id":     r.UserID,
			"state":       r.State,
			"replaced":    r.Replaced,
			"snapshot":    snapshot,
			"started_at":  r.StartedAt,
			"ended_at":    r.EndedAt,
			"archived_at": r.ArchivedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "sessions": out})
}
