// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ErrExhausted is wrapped around the last error once every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is ten attempts 100ms apart.
var Default = Policy{Attempts: 10, Delay: 100 * time.Millisecond}

// Permanent marks an error that must not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Do calls fn until it succeeds, returns a Permanent error, ctx ends, or the
// policy's attempts are spent. There is no delay after the final attempt.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := &backoff.Backoff{Min: p.Delay, Max: p.Delay, Factor: 1}

	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Delay, b); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}

func sleep(ctx context.Context, delay time.Duration, b *backoff.Backoff) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.Duration())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
