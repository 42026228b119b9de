package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the backoff schedule for Do and DoVal.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64

	// ShouldRetry decides whether an attempt's error is retryable.
	// Defaults to IsTransient.
	ShouldRetry func(error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig is tuned for chatty HTTP APIs: a few attempts with
// a sub-second starting backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Do runs fn until it succeeds, the error is non-retryable, attempts are
// exhausted, or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := DoVal(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(err) {
			break
		}
		backoff := computeBackoff(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return zero, lastErr
}

func computeBackoff(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= cfg.Multiplier
	}
	if max := float64(cfg.MaxBackoff); cfg.MaxBackoff > 0 && backoff > max {
		backoff = max
	}
	if cfg.JitterFraction > 0 {
		jitter := backoff * cfg.JitterFraction
		backoff += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(backoff)
}

// RetryLogger returns an OnRetry callback that logs each retry at warn
// level with the given component tag.
func RetryLogger(component string) func(int, error, time.Duration) {
	log := zap.L().With(zap.String("component", component))
	return func(attempt int, err error, backoff time.Duration) {
		log.Warn("retrying after error",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	}
}
