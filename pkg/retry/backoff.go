package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "sgsync/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given retry attempt
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks its delay from the failure that triggered the retry.
type ErrorAwareBackoff interface {
	BackoffStrategy
	NextDelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff mirrors a backoff factor of 5s doubling up to two minutes
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    5 * time.Second,
		MaxDelay:     120 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))

	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff uses a slower strategy when the service reports throttling
type ErrorTypeBackoff struct {
	// RateLimitBackoff for HTTP 429 answers
	RateLimitBackoff BackoffStrategy
	// DefaultBackoff for network failures and 5xx answers
	DefaultBackoff BackoffStrategy
}

// NewErrorTypeBackoff builds a typed backoff around base; throttling waits three times longer.
func NewErrorTypeBackoff(base *ExponentialBackoff) *ErrorTypeBackoff {
	throttled := *base
	throttled.BaseDelay *= 3
	throttled.MaxDelay *= 3
	return &ErrorTypeBackoff{
		RateLimitBackoff: &throttled,
		DefaultBackoff:   base,
	}
}

// NextDelay uses the default strategy
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// NextDelayFor returns the delay for the strategy matching err
func (etb *ErrorTypeBackoff) NextDelayFor(attempt int, err error) time.Duration {
	return etb.GetBackoffForError(errs.TypeOf(err)).NextDelay(attempt)
}

// GetBackoffForError returns the appropriate backoff strategy for the error type
func (etb *ErrorTypeBackoff) GetBackoffForError(errorType errs.ErrorType) BackoffStrategy {
	switch errorType {
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	default:
		return etb.DefaultBackoff
	}
}
