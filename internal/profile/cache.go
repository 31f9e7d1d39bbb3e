// Package profile resolves Messenger user profiles through a SQLite-backed
// cache in front of the User Profile API.
package profile

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garyellow/messenger-bot-go/internal/errors"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/storage"
)

const cacheName = "profile"

var lookupErr = errors.NewWrapper(cacheName, "lookup")

// Fetcher loads a profile from the platform.
type Fetcher interface {
	UserProfile(ctx context.Context, userID string) (*messenger.Profile, error)
}

// Store persists fetched profiles.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*storage.Profile, error)
	SaveProfile(ctx context.Context, p *storage.Profile) error
	DeleteExpiredProfiles(ctx context.Context, ttl time.Duration) (int64, error)
}

// Cache looks profiles up in the store and falls back to the fetcher.
// Concurrent misses for the same user share one API call.
type Cache struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewCache creates a profile cache. store may be nil, in which case every
// lookup goes to the fetcher.
func NewCache(fetcher Fetcher, store Store, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  log.WithModule("profile"),
	}
}

// Lookup returns the profile of userID.
func (c *Cache) Lookup(ctx context.Context, userID string) (*messenger.Profile, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userID", "must not be empty")
	}

	if c.store != nil {
		cached, err := c.store.GetProfile(ctx, userID)
		switch {
		case err == nil:
			c.metrics.RecordCacheHit(cacheName)
			return fromStorage(cached), nil
		case !errors.IsNotFound(err):
			c.logger.WithError(err).WithField("user_id", userID).Warn("Profile cache read failed")
		}
	}
	c.metrics.RecordCacheMiss(cacheName)

	v, err, shared := c.group.Do(userID, func() (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		p, err := c.fetcher.UserProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.SaveProfile(ctx, toStorage(userID, p)); err != nil {
				c.logger.WithError(err).WithField("user_id", userID).Warn("Profile cache write failed")
			}
		}
		return p, nil
	})
	if shared {
		c.metrics.RecordSingleflightDedup(cacheName)
	}
	if err != nil {
		return nil, lookupErr.Wrapf(err, "fetch profile %s", userID)
	}

	p := *v.(*messenger.Profile)
	return &p, nil
}

// Cleanup deletes expired profiles from the store.
func (c *Cache) Cleanup(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.DeleteExpiredProfiles(ctx, c.ttl)
}

// RunCleanup deletes expired profiles every interval, after an initial delay,
// until ctx is canceled.
func (c *Cache) RunCleanup(ctx context.Context, initialDelay, interval time.Duration) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		n, err := c.Cleanup(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("Profile cache cleanup failed")
		} else {
			c.logger.WithField("deleted", n).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("Profile cache cleanup complete")
		}
		timer.Reset(interval)
	}
}

func toStorage(userID string, p *messenger.Profile) *storage.Profile {
	return &storage.Profile{
		UserID:     userID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		ProfilePic: p.ProfilePic,
		Locale:     p.Locale,
		Timezone:   p.Timezone,
		Gender:     p.Gender,
	}
}

func fromStorage(p *storage.Profile) *messenger.Profile {
	return &messenger.Profile{
		ID:         p.UserID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		ProfilePic: p.ProfilePic,
		Locale:     p.Locale,
		Timezone:   p.Timezone,
		Gender:     p.Gender,
	}
}
