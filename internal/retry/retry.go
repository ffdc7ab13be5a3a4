// Package retry bounds upstream calls with per-attempt timeouts and a fixed
// attempt budget. It guards connection establishment only; a stream that has
// started producing data must not be retried by its caller.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls one retried operation.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int
	// PerAttemptTimeout bounds each individual attempt.
	PerAttemptTimeout time.Duration
	// Backoff is the pause between attempts. Zero means retry
	// immediately.
	Backoff time.Duration
}

// DefaultPolicy is 3 attempts, 90s each, no backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, PerAttemptTimeout: 90 * time.Second}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	return p
}

// Do runs op until it succeeds or the attempt budget is exhausted. Each
// attempt runs under its own deadline derived from ctx, and that context is
// cancelled as soon as op returns, so anything op hands back must not depend
// on it. The last error is surfaced to the caller, annotated with the
// attempt count. Cancellation of ctx stops further attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}
		err := op(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("attempt %d/%d: %w", attempt, p.MaxAttempts, lastErr)
		}
		if attempt < p.MaxAttempts && p.Backoff > 0 {
			select {
			case <-time.After(p.Backoff):
			case <-ctx.Done():
				return fmt.Errorf("attempt %d/%d: %w", attempt, p.MaxAttempts, lastErr)
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
