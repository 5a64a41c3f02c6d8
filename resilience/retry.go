package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays grow between attempts.
type BackoffStrategy int

const (
	// BackoffConstant waits the same delay before every retry.
	BackoffConstant BackoffStrategy = iota
	// BackoffLinear waits Delay * attempt.
	BackoffLinear
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 1 (no retry)
	MaxAttempts int

	// Delay is the wait before the first retry.
	// Default: 2s
	Delay time.Duration

	// MaxDelay caps the wait between attempts.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is used by BackoffExponential.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffConstant
	Strategy BackoffStrategy

	// Jitter adds up to 25% to each delay.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: all non-nil errors.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a failed operation.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Delay <= 0 {
		config.Delay = 2 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. When attempts run out after more than one try, the last
// error is wrapped with ErrMaxRetriesExceeded.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.Backoff(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := Wait(ctx, delay); err != nil {
			return err
		}
	}

	if r.config.MaxAttempts > 1 {
		return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
	}
	return lastErr
}

// Backoff returns the wait after the given failed attempt (1-based).
func (r *Retry) Backoff(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case BackoffLinear:
		delay = r.config.Delay * time.Duration(attempt)
	case BackoffExponential:
		delay = time.Duration(float64(r.config.Delay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	default:
		delay = r.config.Delay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Wait blocks for d or until ctx ends, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
