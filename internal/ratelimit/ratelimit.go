// Package ratelimit provides non-blocking token-bucket admission control.
// Each search provider instance owns one bucket; tokens refill continuously
// over the configured period rather than in discrete ticks.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket admits requests while tokens are available. Refill accrues
// fractionally: capacity tokens per period, capped at capacity.
// Safe for concurrent use.
type TokenBucket struct {
	limiter  *rate.Limiter
	capacity int
}

// NewTokenBucket creates a bucket that refills capacity tokens per period.
// The bucket starts full.
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if period <= 0 {
		period = time.Second
	}

	refill := rate.Limit(float64(capacity) / period.Seconds())

	return &TokenBucket{
		limiter:  rate.NewLimiter(refill, capacity),
		capacity: capacity,
	}
}

// TryConsume attempts to take n tokens. It never blocks: it returns true and
// deducts the tokens if enough are available, otherwise it returns false and
// leaves the bucket unchanged. Callers decide whether to wait, retry, or fail.
func (b *TokenBucket) TryConsume(n int) bool {
	return b.limiter.AllowN(time.Now(), n)
}

// Available returns the current token count. The value is a snapshot and may
// be stale by the time the caller acts on it; it never exceeds Capacity.
func (b *TokenBucket) Available() float64 {
	tokens := b.limiter.TokensAt(time.Now())
	if tokens < 0 {
		return 0
	}
	if tokens > float64(b.capacity) {
		return float64(b.capacity)
	}
	return tokens
}

// Capacity returns the maximum number of tokens the bucket can hold.
func (b *TokenBucket) Capacity() int {
	return b.capacity
}
