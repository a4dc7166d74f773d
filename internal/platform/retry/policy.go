// Package retry implements the backoff policy used for ExternalUnavailable
// and Timeout recovery (spec §7) — the Optimization Loop's mutation and
// rollback calls into its collaborators are wrapped with one of these
// policies rather than retried ad hoc; the Ingestion Pipeline does not use
// it. Adapted from the
// teacher's application/engine retry policy (same backoff math, same
// Execute-loop shape), generalized to use the injected Clock capability
// instead of time.After directly, per the spec §9 redesign.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leadctl/optimizer/internal/platform/clock"
)

// BackoffStrategy defines how retry delays are calculated.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// Policy defines the retry behavior for one external collaborator call.
type Policy struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts int

	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffStrategy

	// RetryableErrors restricts retries to errors whose message contains one
	// of these substrings. Empty means all errors are retryable.
	RetryableErrors []string

	// OnRetry is an optional callback invoked before each retry wait.
	OnRetry func(attempt int, err error)

	// Clock is the time source used for retry delays; defaults to
	// clock.Real{} when nil, letting tests inject a clock.Fake.
	Clock clock.Clock
}

// Default returns the spec's default backoff: 3 attempts, 1s initial delay
// exponential up to 30s, used for ExternalUnavailable/Timeout recovery.
func Default() *Policy {
	return &Policy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		BackoffStrategy: BackoffExponential,
	}
}

// None returns a policy that never retries.
func None() *Policy {
	return &Policy{MaxAttempts: 1}
}

func (p *Policy) clock() clock.Clock {
	if p.Clock == nil {
		return clock.Real{}
	}
	return p.Clock
}

// ShouldRetry determines if an error is retryable according to the policy.
func (p *Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if len(p.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// GetDelay calculates the delay before the next retry.
func (p *Policy) GetDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.BackoffStrategy {
	case BackoffConstant:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(2, float64(attempt-1))
		delay = time.Duration(float64(p.InitialDelay) * multiplier)
	default:
		delay = p.InitialDelay
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Execute runs fn, retrying per policy until it succeeds, attempts are
// exhausted, the error is non-retryable, or ctx is cancelled.
func (p *Policy) Execute(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("execution cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= p.MaxAttempts || !p.ShouldRetry(err) {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		delay := p.GetDelay(attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("execution cancelled during retry delay: %w", ctx.Err())
			case <-p.clock().After(delay):
			}
		}
	}

	return fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// IsRetryableError reports whether err looks transient: context cancellation
// is never retryable, Temporary()/Timeout() error interfaces are honored.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var temporaryErr interface{ Temporary() bool }
	if errors.As(err, &temporaryErr) {
		return temporaryErr.Temporary()
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}

	return true
}
