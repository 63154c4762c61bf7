package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event core metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records acceptance of an event by the bus.
	RecordPublish(ctx context.Context, eventType string, subscribers int)

	// RecordHandler records one handler delivery with its duration, retry
	// count and error status.
	RecordHandler(ctx context.Context, eventType, handler string, duration time.Duration, attempts int, err error)

	// RecordDeadLetter records a delivery that exhausted its retry budget.
	RecordDeadLetter(ctx context.Context, eventType, handler string)

	// RecordAgentTransition records an agent lifecycle state change.
	RecordAgentTransition(ctx context.Context, agent, state string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	published        metric.Int64Counter
	handlerRuns      metric.Int64Counter
	handlerLatency   metric.Float64Histogram
	handlerRetries   metric.Int64Counter
	handlerErrors    metric.Int64Counter
	deadLetters      metric.Int64Counter
	agentTransitions metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("predmaint")

	published, err := meter.Int64Counter("predmaint.bus.published",
		metric.WithDescription("Number of events accepted by the bus"),
	)
	if err != nil {
		return nil, err
	}

	handlerRuns, err := meter.Int64Counter("predmaint.handler.deliveries",
		metric.WithDescription("Number of handler deliveries"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("predmaint.handler.latency_ms",
		metric.WithDescription("Handler delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerRetries, err := meter.Int64Counter("predmaint.handler.retries",
		metric.WithDescription("Number of handler retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("predmaint.handler.errors",
		metric.WithDescription("Number of handler deliveries that failed after retries"),
	)
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter("predmaint.bus.dead_letters",
		metric.WithDescription("Number of dead letter records produced"),
	)
	if err != nil {
		return nil, err
	}

	agentTransitions, err := meter.Int64Counter("predmaint.agent.transitions",
		metric.WithDescription("Number of agent lifecycle transitions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		published:        published,
		handlerRuns:      handlerRuns,
		handlerLatency:   handlerLatency,
		handlerRetries:   handlerRetries,
		handlerErrors:    handlerErrors,
		deadLetters:      deadLetters,
		agentTransitions: agentTransitions,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records acceptance of an event by the bus.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType string, subscribers int) {
	m.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Int("subscribers", subscribers),
	))
}

// RecordHandler records one handler delivery.
func (m *otelMetrics) RecordHandler(ctx context.Context, eventType, handler string, duration time.Duration, attempts int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("handler", handler),
	}

	m.handlerRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.handlerLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if attempts > 1 {
		m.handlerRetries.Add(ctx, int64(attempts-1), metric.WithAttributes(attrs...))
	}
	if err != nil {
		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDeadLetter records a dead letter.
func (m *otelMetrics) RecordDeadLetter(ctx context.Context, eventType, handler string) {
	m.deadLetters.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("handler", handler),
	))
}

// RecordAgentTransition records an agent lifecycle state change.
func (m *otelMetrics) RecordAgentTransition(ctx context.Context, agent, state string) {
	m.agentTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("state", state),
	))
}
