package observe

import (
	"context"
	"time"
)

// OperationFunc is the signature for guarded operations.
// This matches the operation shape used by the resilience package.
type OperationFunc func(ctx context.Context) error

// Middleware wraps guarded operations with observability (tracing, metrics,
// logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe OperationFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an OperationFunc with tracing, metrics, and logging. An empty
// OpMeta.Kind yields an operation that fails with ErrMissingOpKind.
func (m *Middleware) Wrap(meta OpMeta, fn OperationFunc) OperationFunc {
	if meta.Kind == "" {
		return func(ctx context.Context) error {
			return ErrMissingOpKind
		}
	}

	return func(ctx context.Context) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		err := fn(ctx)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordOperation(ctx, meta, duration, err)

		opLogger := m.logger.With(
			Field{Key: "op.kind", Value: meta.Kind},
			Field{Key: "op.component", Value: meta.Component},
		)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			opLogger.Error(ctx, "guarded operation failed", fields...)
		} else {
			opLogger.Debug(ctx, "guarded operation completed", fields...)
		}

		return err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := newTracer(obs.Tracer())

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
