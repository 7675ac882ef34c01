// Package observe provides telemetry primitives for the admission layer:
// structured logging, OpenTelemetry tracing, and domain metrics.
//
// The Observer facade owns the OTel providers and hands out a Tracer, a
// Meter, and a structured JSON Logger. Disabled subsystems fall back to
// no-op implementations, so callers never branch on configuration.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "realtime-gateway",
//	    Version:     "1.4.0",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.1},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
// Domain metrics (probe outcomes, admission decisions, breaker transitions)
// are recorded through the Metrics interface:
//
//	metrics, err := observe.NewMetrics(obs.Meter())
//
// Outbound operations can be wrapped with span + metrics + log in one step:
//
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	send := mw.Wrap(observe.OpMeta{Kind: "bridge_send", Component: "bridge"}, rawSend)
package observe
