package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the retry loop around a rate-limited operation.
type RetryConfig struct {
	MaxRetries    uint64
	BaseDelay     time.Duration
	MaxRetryDelay time.Duration
}

// DefaultRetryConfig matches the usual posture for bursty issue/PR events:
// a few retries with capped exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxRetryDelay: 60 * time.Second,
	}
}

func newRetryBackoff(cfg RetryConfig) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.MaxInterval = cfg.MaxRetryDelay
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries, not elapsed time
	return backoff.WithMaxRetries(bo, cfg.MaxRetries)
}

// Retry wraps an operation with the limiter's policy check and bounded
// exponential backoff. Before every attempt it calls CheckOperation; a
// rate-limit or cost denial from the check or from fn itself is permanent —
// retrying cannot create budget. Transient failures from fn are retried up
// to cfg.MaxRetries.
func Retry(ctx context.Context, l *Limiter, operationType string, cfg RetryConfig, fn func() error) error {
	bo := newRetryBackoff(cfg)
	return backoff.Retry(func() error {
		if err := l.CheckOperation(operationType); err != nil {
			return backoff.Permanent(err)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCostLimit) || errors.Is(err, ErrRateLimited) {
			return backoff.Permanent(err)
		}
		return err // transient: backoff will retry
	}, backoff.WithContext(bo, ctx))
}
