package app

import (
	"context"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/config"
)

// startBackgroundJobs launches the maintenance loops. They stop when ctx is
// canceled and are tracked by a.wg so shutdown can wait for them.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.profiles.RunCleanup(ctx, config.ProfileCleanupInitialDelay, config.ProfileCleanupInterval)
	})
	a.wg.Go(func() {
		runPeriodic(ctx, config.ArchiveCleanupInterval, config.ArchiveCleanupInterval, a.pruneArchive)
	})
	a.wg.Go(func() {
		runPeriodic(ctx, 0, config.MetricsUpdateInterval, a.updateCacheSizeMetrics)
	})
}

// runPeriodic calls fn after initialDelay and then every interval until ctx
// is canceled.
func runPeriodic(ctx context.Context, initialDelay, interval time.Duration, fn func(context.Context)) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// pruneArchive deletes archived sessions older than the retention window.
func (a *Application) pruneArchive(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-config.ArchiveRetention)

	deleted, err := a.db.DeleteArchivedSessionsBefore(ctx, cutoff)
	a.metrics.RecordJob("archive_cleanup", time.Since(start).Seconds())
	if err != nil {
		a.logger.WithError(err).Error("Failed to prune session archive")
		return
	}
	a.logger.WithField("deleted", deleted).
		WithField("cutoff", cutoff.Format(time.RFC3339)).
		Info("Session archive pruned")
}

func (a *Application) updateCacheSizeMetrics(ctx context.Context) {
	n, err := a.db.CountProfiles(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count cached profiles")
		return
	}
	a.metrics.SetCacheSize("profile", n)
	if a.bot != nil {
		a.metrics.SetCacheSize("session", a.bot.Sessions().Len())
	}
	if a.userLimiter != nil {
		a.metrics.SetCacheSize("user_limiter", a.userLimiter.ActiveCount())
	}
}
