package clock

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by RunTimeout when the operation exceeds its budget.
var ErrTimeout = errors.New("clock: operation timed out")

// Clock supplies the current time, context-aware sleeping, and
// timeout-bounded execution of an operation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Sleep and RunTimeout must return promptly when ctx is cancelled.
// - Errors: RunTimeout returns ErrTimeout on deadline, ctx.Err() on cancellation.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for the given duration or until ctx is cancelled,
	// whichever comes first. Returns ctx.Err() on cancellation, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error

	// RunTimeout runs op bounded by timeout. The op receives a context that
	// is cancelled when the budget expires, and RunTimeout returns ErrTimeout.
	// A cancelled parent context returns ctx.Err(). The op's own error is
	// returned unchanged.
	RunTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error
}

// System returns the real wall-clock implementation.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (systemClock) RunTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- op(opCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
}
