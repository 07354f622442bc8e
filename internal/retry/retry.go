// Package retry implements a reusable retry decorator with exponential
// backoff. The extraction-service call is its only production consumer, but
// the policy is deliberately independent of what it wraps.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Permanent wraps an error that must not be retried regardless of the
// attempt budget.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// IsPermanent reports whether err carries a Permanent marker.
func IsPermanent(err error) bool {
	var p *Permanent
	return errors.As(err, &p)
}

// Config controls the retry policy.
type Config struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // wait before attempt 2; doubles each attempt
	MaxDelay    time.Duration // backoff ceiling
	Logger      *zap.Logger
}

// DefaultConfig mirrors the extraction pipeline's policy: three attempts
// with a 2s-to-10s exponential window.
func DefaultConfig(logger *zap.Logger) Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Logger:      logger,
	}
}

// Do runs fn until it succeeds, the attempt budget is spent, fn returns a
// Permanent error, or ctx is done. The returned error is the last one fn
// produced, wrapped with the operation name once the budget is exhausted.
func Do(ctx context.Context, cfg Config, op string, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := jitter(delay)
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		logger.Warn("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

// jitter returns a duration in [d/2, d) to spread concurrent retries.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
