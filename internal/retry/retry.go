// Package retry runs fallible operations under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultInitial = time.Second
	DefaultCeiling = 32 * time.Second
)

// Policy controls the delay schedule. The zero value uses the defaults.
type Policy struct {
	Initial time.Duration
	Ceiling time.Duration

	// Sleep waits for d or until ctx is done. Tests substitute a fake clock.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each wait with the 1-based number of the
	// attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy starts at one second, doubles, and stops once the next delay
// would pass 32 seconds.
func DefaultPolicy() Policy {
	return Policy{Initial: DefaultInitial, Ceiling: DefaultCeiling}
}

func (p Policy) normalize() Policy {
	if p.Initial <= 0 {
		p.Initial = DefaultInitial
	}
	if p.Ceiling <= 0 {
		p.Ceiling = DefaultCeiling
	}
	if p.Sleep == nil {
		p.Sleep = waitBackoff
	}
	return p
}

// Do calls op until it succeeds or maxAttempts is spent. A retry happens only
// while more than one attempt remains and the pending delay is within the
// ceiling. The last error is returned unchanged. Error kinds are not
// inspected.
func Do[T any](ctx context.Context, p Policy, maxAttempts int, op func(context.Context) (T, error)) (T, error) {
	p = p.normalize()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	delay := p.Initial
	for attempt, remaining := 1, maxAttempts; ; attempt, remaining = attempt+1, remaining-1 {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if remaining <= 1 || delay > p.Ceiling {
			return zero, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
		delay *= 2
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, maxAttempts int, op func(context.Context) error) error {
	_, err := Do(ctx, p, maxAttempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
