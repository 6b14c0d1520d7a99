package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/stayware/identity-context-service/internal/errors"
)

// Backoff policy for network-class failures.
//
//	delay = min(cap, base * 2^attempt) + U(0, 0.5*delay)
//
// Attempt numbering starts at 0 ; attempt == Attempts produces
// a terminal error rather than another delay.
type Backoff struct {
	// Base delay ; attempt 0
	Base time.Duration
	// Cap bounds the exponential part
	Cap time.Duration
	// Attempts ceiling
	Attempts int
	// Rand yields U(0,1) jitter ; default math/rand
	Rand func() float64
}

// Default initialization retry policy.
var Default = Backoff{
	Base:     500 * time.Millisecond,
	Cap:      10 * time.Second,
	Attempts: 5,
}

// Delay for the given zero-based [attempt].
// Non-decreasing in expectation and bounded by Cap + Cap/2.
func (p Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.Base
	// min(cap, base * 2^attempt) without overflow
	for i := 0; i < attempt && delay < p.Cap; i++ {
		delay *= 2
	}
	if delay > p.Cap {
		delay = p.Cap
	}
	jitter := p.Rand
	if jitter == nil {
		jitter = rand.Float64
	}
	return delay + time.Duration(jitter()*0.5*float64(delay))
}

// Do runs [op] until it succeeds, returns a non-retryable error,
// or the attempt ceiling is exhausted. Only NETWORK_ERROR class
// failures are retried ; the last error is surfaced as terminal.
func (p Backoff) Do(ctx context.Context, op func(ctx context.Context) error) (err error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err = op(ctx)
		if err == nil || !errors.Retryable(err) {
			return err
		}
		// beyond the ceiling: terminal
		if attempt+1 >= attempts {
			return err
		}
		wait := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return errors.FromError(ctx.Err())
		case <-wait.C:
		}
	}
	return err
}
