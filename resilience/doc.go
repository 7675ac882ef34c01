// Package resilience provides a circuit breaker for retried outbound operations.
//
// The circuit breaker wraps a single retryable operation in a three-state
// machine (closed, open, half-open) with exponential backoff between attempts
// and a per-attempt timeout. When a dependency keeps failing, the circuit
// opens and callers fail fast with ErrCircuitOpen instead of piling retries
// onto a known-bad service. After a recovery timeout the circuit admits
// probe calls (half-open) and closes again once enough of them succeed.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.ProductionConfig())
//
//	err := cb.Call(ctx, "websocket_connect", func(ctx context.Context) error {
//	    return dialUpstream(ctx)
//	})
//	switch {
//	case errors.Is(err, resilience.ErrCircuitOpen):
//	    // fast-fail: do not retry, take the degraded fallback path
//	case errors.Is(err, clock.ErrTimeout):
//	    // all attempts timed out
//	case err != nil:
//	    // all attempts failed with the operation's own error
//	}
//
// Operations that produce a value go through the generic form:
//
//	conn, err := resilience.Call(ctx, cb, "websocket_connect", dial)
//
// One CircuitBreaker instance guards one logical operation domain (for
// example every websocket connect shares an instance). Construct it once at
// process startup and pass it to all call sites; all state transitions are
// mutex-guarded and safe for concurrent callers. Note that the half-open
// state admits every concurrent caller as a probe, not just one.
package resilience
