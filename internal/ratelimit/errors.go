package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is the sentinel matched by errors.Is for rate-limit denials.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrCostLimit is the sentinel matched by errors.Is for budget denials.
var ErrCostLimit = errors.New("cost limit exceeded")

// RateLimitError reports a denied API slot. Bucket state is never corrupted
// by the denial; the caller may back off and retry.
type RateLimitError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s (retry after %s)", e.Operation, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Operation)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// CostLimitError reports an operation whose cost would exceed the budget.
// The operation was rejected atomically: nothing was recorded.
type CostLimitError struct {
	Operation string
	Cost      float64
	Remaining float64
	Limit     float64
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("cost limit exceeded: operation %q costs $%.4f but only $%.4f of $%.2f remains",
		e.Operation, e.Cost, e.Remaining, e.Limit)
}

// Is makes errors.Is(err, ErrCostLimit) match.
func (e *CostLimitError) Is(target error) bool { return target == ErrCostLimit }
