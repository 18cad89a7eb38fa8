package retry

import (
	"context"
	"time"

	"imagelab/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Policy retries an operation a bounded number of times with a fixed delay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether an error warrants another attempt.
	// Defaults to domain.IsTransient.
	Retryable func(error) bool
	// OnRetry is invoked before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error)
}

// Single is the policy for adapters that never retry.
var Single = Policy{MaxAttempts: 1}

// Default mirrors the inference-endpoint behaviour: three attempts, two seconds apart.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts are
// exhausted or ctx is done. It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt - 1, err
		}
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts || !retryable(err) {
			return attempt, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, err
			case <-timer.C:
			}
		}
	}
	return maxAttempts, err
}
