package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records admission-layer telemetry: health probe outcomes,
// connection admission decisions, circuit state transitions, and guarded
// operation executions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records a single health probe outcome for a service.
	RecordProbe(ctx context.Context, service string, duration time.Duration, err error)

	// RecordAdmission records a connection admission decision.
	RecordAdmission(ctx context.Context, allowed bool, reason string)

	// RecordStateChange records a circuit breaker state transition for an
	// operation domain.
	RecordStateChange(ctx context.Context, domain, from, to string)

	// RecordOperation records a guarded operation execution with duration
	// and error status.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	probeCount     metric.Int64Counter
	probeDuration  metric.Float64Histogram
	admissionCount metric.Int64Counter
	stateChanges   metric.Int64Counter
	opCount        metric.Int64Counter
	opErrors       metric.Int64Counter
	opDuration     metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	probeCount, err := meter.Int64Counter(
		"guard.probe.total",
		metric.WithDescription("Total number of health probes"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"guard.probe.duration_ms",
		metric.WithDescription("Health probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	admissionCount, err := meter.Int64Counter(
		"guard.admission.total",
		metric.WithDescription("Total number of connection admission decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	stateChanges, err := meter.Int64Counter(
		"guard.breaker.transitions",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	opCount, err := meter.Int64Counter(
		"guard.op.total",
		metric.WithDescription("Total number of guarded operation executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter(
		"guard.op.errors",
		metric.WithDescription("Total number of guarded operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	opDuration, err := meter.Float64Histogram(
		"guard.op.duration_ms",
		metric.WithDescription("Guarded operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		probeCount:     probeCount,
		probeDuration:  probeDuration,
		admissionCount: admissionCount,
		stateChanges:   stateChanges,
		opCount:        opCount,
		opErrors:       opErrors,
		opDuration:     opDuration,
	}, nil
}

// RecordProbe records a health probe outcome.
func (m *metricsImpl) RecordProbe(ctx context.Context, service string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}

	opt := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	)

	m.probeCount.Add(ctx, 1, opt)
	m.probeDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordAdmission records a connection admission decision.
func (m *metricsImpl) RecordAdmission(ctx context.Context, allowed bool, reason string) {
	attrs := []attribute.KeyValue{
		attribute.Bool("allowed", allowed),
	}
	if !allowed && reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}

	m.admissionCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStateChange records a circuit breaker transition.
func (m *metricsImpl) RecordStateChange(ctx context.Context, domain, from, to string) {
	m.stateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordOperation records metrics for a guarded operation execution.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op.kind", meta.Kind),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("op.component", meta.Component))
	}

	opt := metric.WithAttributes(attrs...)

	m.opCount.Add(ctx, 1, opt)
	if err != nil {
		m.opErrors.Add(ctx, 1, opt)
	}
	m.opDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordProbe(ctx context.Context, service string, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordAdmission(ctx context.Context, allowed bool, reason string) {}
func (m *noopMetrics) RecordStateChange(ctx context.Context, domain, from, to string)   {}
func (m *noopMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}
