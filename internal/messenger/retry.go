package messenger

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"math/big"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/errors"
)

// retryWithBackoff retries fn with exponential backoff and ±25% jitter.
// Only transient Graph errors (429, 5xx) and transport failures are retried.
//
// maxRetries: retry attempts after the first try (0 = try once)
// Backoff: delay = initialDelay * 2^attempt, capped at maxDelay.
func retryWithBackoff(ctx context.Context, maxRetries int, initialDelay, maxDelay time.Duration, onRetry func(error), fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxRetries {
			break
		}
		if onRetry != nil {
			onRetry(err)
		}

		delay := min(initialDelay<<attempt, maxDelay)
		if err := sleep(ctx, jitter(delay)); err != nil {
			return err
		}
	}

	return lastErr
}

func retryable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ge *errors.GraphError
	if stderrors.As(err, &ge) {
		return ge.Temporary()
	}
	var ve *errors.ValidationError
	return !stderrors.As(err, &ve)
}

func jitter(delay time.Duration) time.Duration {
	half := int64(delay) / 2
	if half <= 0 {
		return delay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(half))
	if err != nil {
		return delay
	}
	return delay - delay/4 + time.Duration(n.Int64())
}

// sleep waits for d, respecting context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
