// Package retry implements the exponential backoff policy applied to
// external calls: delay = min(initial * multiplier^attempt, maxDelay),
// bounded by maxRetries, only on transient error kinds as decided by a
// caller-supplied classifier. Generalized from the teacher's
// pkg/agent/middleware/resilience/retry middleware into a standalone
// helper usable outside the LLM-call middleware chain.
package retry

import (
	"context"
	"math"
	"time"
)

// Classify decides whether err is transient (worth retrying) or not.
type Classify func(err error) bool

// Policy parameterizes backoff.
type Policy struct {
	MaxRetries int
	Initial    time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// delay returns the backoff duration before the given 0-indexed attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs fn, retrying on transient errors (as decided by classify) up to
// policy.MaxRetries additional times with exponential backoff between
// attempts. It returns the last error if all attempts are exhausted, or
// immediately on a non-transient error. ctx cancellation aborts waiting
// between attempts.
func Do(ctx context.Context, policy Policy, classify Classify, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if classify != nil && !classify(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}
		select {
		case <-time.After(policy.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
