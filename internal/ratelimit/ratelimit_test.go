package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_AllowAndRefill(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newWithClock(3, 1, clock.Now)

	for i := range 3 {
		assert.True(t, l.Allow(), "burst token %d", i)
	}
	assert.False(t, l.Allow(), "bucket drained")

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
	assert.InDelta(t, 0.5, l.Available(), 0.0001)

	clock.Advance(time.Hour)
	assert.True(t, l.IsFull(), "refill is capped at burst")
	assert.InDelta(t, 3.0, l.Available(), 0.0001)
}

func TestLimiter_WaitAcquires(t *testing.T) {
	t.Parallel()

	l := New(1, 100)
	require.True(t, l.Allow())

	waited, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Greater(t, waited, time.Duration(0))
	assert.Less(t, waited, time.Second)
}

func TestLimiter_WaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(1, 0.01)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_ConcurrentAllow(t *testing.T) {
	t.Parallel()

	l := New(50, 0.001)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 100 {
		wg.Go(func() {
			if l.Allow() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
}
