package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all calls.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Operation is a retryable unit of work guarded by the circuit breaker.
type Operation func(ctx context.Context) error

// CircuitBreaker implements the circuit breaker pattern around retried
// operations. One instance guards one logical operation domain; the
// per-call operation kind only labels the failure history.
type CircuitBreaker struct {
	config Config

	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	lastFailure    time.Time
	failureHistory map[string]int
}

// NewCircuitBreaker creates a new circuit breaker. Zero config fields get
// the documented defaults.
func NewCircuitBreaker(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config:         config.withDefaults(),
		state:          StateClosed,
		failureHistory: make(map[string]int),
	}
}

// IsCallAllowed reports whether a call may proceed. In the open state it
// checks the recovery timeout against the last failure; once the timeout has
// elapsed the circuit transitions to half-open (resetting the half-open
// success count) and the call is admitted as a probe.
func (cb *CircuitBreaker) IsCallAllowed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.config.Clock.Now().Sub(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.setStateLocked(StateHalfOpen)
			return true
		}
		return false
	default: // closed or half-open
		return true
	}
}

// RecordSuccess records a successful call. In half-open, enough successes
// close the circuit and clear the failure count. In closed, a success
// forgives one past failure without fully resetting the count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setStateLocked(StateClosed)
			cb.failureCount = 0
		}
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	}
}

// RecordFailure records a failed call of the given operation kind. Reaching
// the failure threshold opens the circuit; any failure during half-open
// probation reopens it immediately.
func (cb *CircuitBreaker) RecordFailure(kind string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.failureHistory[kind]++
	cb.lastFailure = cb.config.Clock.Now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.setStateLocked(StateOpen)
	}
}

// Call runs op through the circuit breaker. If the circuit rejects the call,
// it fails immediately with ErrCircuitOpen and no attempt is consumed.
// Otherwise op is attempted up to MaxRetryAttempts times, each attempt
// bounded by the configured timeout. Between attempts the caller sleeps
// min(BaseDelay * 2^attempt, MaxDelay); there is no delay after the final
// attempt. On exhaustion RecordFailure is invoked exactly once and the last
// error is returned unchanged (timeouts surface as clock.ErrTimeout).
//
// Caller cancellation aborts the call without recording a failure: the
// dependency was never conclusively observed to fail.
func (cb *CircuitBreaker) Call(ctx context.Context, kind string, op Operation) error {
	if !cb.IsCallAllowed() {
		return ErrCircuitOpen
	}

	var lastErr error

	for attempt := 0; attempt < cb.config.MaxRetryAttempts; attempt++ {
		err := cb.config.Clock.RunTimeout(ctx, cb.config.Timeout, op)
		if err == nil {
			cb.RecordSuccess()
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err

		if attempt < cb.config.MaxRetryAttempts-1 {
			if err := cb.config.Clock.Sleep(ctx, cb.backoffDelay(attempt)); err != nil {
				return err
			}
		}
	}

	cb.RecordFailure(kind)
	return lastErr
}

// Call runs an operation that produces a value through the circuit breaker.
// It has the same retry, backoff, and fast-fail semantics as
// CircuitBreaker.Call.
func Call[T any](ctx context.Context, cb *CircuitBreaker, kind string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := cb.Call(ctx, kind, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// State returns the current circuit state without side effects. The
// open-to-half-open transition happens only on IsCallAllowed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the circuit breaker to the closed state and clears the
// failure and success counts. The per-kind failure history is diagnostic
// and survives resets.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.setStateLocked(StateClosed)
	}
	cb.failureCount = 0
	cb.successCount = 0
}

// Snapshot contains circuit breaker statistics.
type Snapshot struct {
	State          State
	FailureCount   int
	SuccessCount   int
	LastFailure    time.Time
	FailureHistory map[string]int
}

// Snapshot returns the current circuit breaker statistics. The failure
// history is copied.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	history := make(map[string]int, len(cb.failureHistory))
	for kind, count := range cb.failureHistory {
		history[kind] = count
	}

	return Snapshot{
		State:          cb.state,
		FailureCount:   cb.failureCount,
		SuccessCount:   cb.successCount,
		LastFailure:    cb.lastFailure,
		FailureHistory: history,
	}
}

func (cb *CircuitBreaker) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(cb.config.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay <= 0 || delay > cb.config.MaxDelay {
		delay = cb.config.MaxDelay
	}
	return delay
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	if state == StateHalfOpen || state == StateOpen {
		cb.successCount = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}
