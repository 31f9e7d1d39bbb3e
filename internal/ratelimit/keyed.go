package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "user")
	Name string

	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// CleanupPeriod is how often idle keys are discarded (0 disables cleanup).
	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket per key (a Messenger user id) and
// discards buckets that have refilled completely.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	config   KeyedConfig
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter creates a per-key limiter and starts its cleanup loop.
// Call Stop to release the goroutine.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*Limiter),
		config:   cfg,
		stopCh:   make(chan struct{}),
	}
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Allow consumes a token from key's bucket. An empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	if kl.limiter(key).Allow() {
		return true
	}
	kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
	return false
}

func (kl *KeyedLimiter) limiter(key string) *Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	l, ok := kl.limiters[key]
	if !ok {
		l = New(kl.config.Burst, kl.config.RefillRate)
		kl.limiters[key] = l
	}
	return l
}

// Available returns the tokens left for key, or Burst for unknown keys.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.Lock()
	l, ok := kl.limiters[key]
	kl.mu.Unlock()

	if !ok {
		return kl.config.Burst
	}
	return l.Available()
}

// Config returns the limiter configuration.
func (kl *KeyedLimiter) Config() KeyedConfig {
	return kl.config
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Cleanup discards buckets that are full and returns how many remain.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, l := range kl.limiters {
		if l.IsFull() {
			delete(kl.limiters, key)
		}
	}
	return len(kl.limiters)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}
