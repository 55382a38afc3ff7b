// Package ratelimit bounds external API call rates and AI spend. It fails
// closed: when tokens or budget are unavailable the caller is denied, never
// silently allowed through.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/types"
)

// acquirePollInterval bounds how often a blocked Acquire rechecks the bucket.
const acquirePollInterval = 100 * time.Millisecond

// TokenBucket is a classic token bucket: capacity tokens of burst, refilled
// continuously at refillRate tokens per second. Refill is computed lazily
// from elapsed time at each access; there is no background goroutine.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time

	// now is the clock source, swappable in tests.
	now func() time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	b := &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// refillLocked advances the token level by the elapsed wall-clock time.
// Caller must hold mu.
func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now
}

// TryAcquire deducts n tokens if available and returns true; otherwise it
// returns false and consumes nothing.
func (b *TokenBucket) TryAcquire(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	need := float64(n)
	if b.tokens >= need {
		b.tokens -= need
		return true
	}
	return false
}

// Available returns the refilled token count without consuming any.
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// TimeUntilAvailable returns how long until n tokens will be available, or 0
// if they already are. Pure calculation, no side effect on the token level.
func (b *TokenBucket) TimeUntilAvailable(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	need := float64(n)
	if b.tokens >= need {
		return 0
	}
	seconds := (need - b.tokens) / b.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// Acquire blocks until n tokens are acquired or ctx is done. It polls
// TryAcquire with short cooperative sleeps so it only suspends the calling
// task, and it never consumes tokens it failed to fully reserve. Returns
// false on ctx expiry/cancellation.
func (b *TokenBucket) Acquire(ctx context.Context, n int) bool {
	for {
		if b.TryAcquire(n) {
			return true
		}

		wait := b.TimeUntilAvailable(n)
		if wait > acquirePollInterval || wait <= 0 {
			wait = acquirePollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Snapshot captures the current token level for the warm-restart file.
func (b *TokenBucket) Snapshot() types.BucketState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return types.BucketState{
		AvailableTokens: b.tokens,
		LastRefillUnix:  float64(b.lastRefill.UnixNano()) / float64(time.Second),
	}
}

// Restore resets the bucket from a snapshot. Tokens are clamped to
// [0, capacity]; refill resumes from the snapshot's timestamp so headroom
// accrued while the process was down is credited on the next access.
func (b *TokenBucket) Restore(state types.BucketState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = state.AvailableTokens
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens < 0 {
		b.tokens = 0
	}
	sec := int64(state.LastRefillUnix)
	nsec := int64((state.LastRefillUnix - float64(sec)) * float64(time.Second))
	b.lastRefill = time.Unix(sec, nsec)
}
