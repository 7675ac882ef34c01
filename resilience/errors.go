package resilience

import "errors"

// Sentinel errors for circuit breaker operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	// without attempting it. Callers must not retry; the error signals
	// "don't even try" so a fallback path can be taken immediately.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("resilience: invalid circuit breaker config")

	// ErrUnknownEnvironment is returned by ConfigForEnvironment for an
	// unrecognized environment tag.
	ErrUnknownEnvironment = errors.New("resilience: unknown environment")
)
