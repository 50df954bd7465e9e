package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls how an operation is retried. The zero value retries three
// times with a 200ms base backoff and no predicate (every error retried).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry decides whether an error is worth another attempt. A nil
	// predicate treats every error as retryable.
	ShouldRetry func(error) bool
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Do runs fn until it succeeds, the policy is exhausted, the predicate rejects
// the error, or the context is cancelled. The last error is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return lastErr
}

// backoff returns an exponential delay with jitter, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay/2 + jitter
}
