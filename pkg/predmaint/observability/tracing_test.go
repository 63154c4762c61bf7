package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("predmaint")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartPublishSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("creates span with event attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartPublishSpan(ctx, "sensor.data_received", "evt-1", "corr-1")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "predmaint.publish", s.Name)

		var eventType, eventID, correlationID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "event.type":
				eventType = attr.Value.AsString()
			case "event.id":
				eventID = attr.Value.AsString()
			case "event.correlation_id":
				correlationID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "sensor.data_received", eventType)
		assert.Equal(t, "evt-1", eventID)
		assert.Equal(t, "corr-1", correlationID)
	})

	t.Run("returns context carrying the span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := sm.StartPublishSpan(ctx, "data.processed", "evt-2", "corr-2")
		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestStartHandlerSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("creates span with handler name suffix", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartHandlerSpan(ctx, "anomaly-detection")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "predmaint.handler.anomaly-detection", s.Name)

		var handler string
		for _, attr := range s.Attributes {
			if attr.Key == "handler" {
				handler = attr.Value.AsString()
			}
		}
		assert.Equal(t, "anomaly-detection", handler)
	})

	t.Run("handler span is a child of the publish span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, pubSpan := sm.StartPublishSpan(ctx, "data.processed", "evt-3", "corr-3")

		_, handlerSpan := sm.StartHandlerSpan(ctx, "scheduling")
		handlerSpan.End()

		pubSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		var handlerData *tracetest.SpanStub
		for i := range spans {
			if spans[i].Name == "predmaint.handler.scheduling" {
				handlerData = &spans[i]
				break
			}
		}
		require.NotNil(t, handlerData)
		assert.True(t, handlerData.Parent.IsValid())
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartPublishSpan(ctx, "test", "evt-1", "corr-1")

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Equal(t, "", spans[0].Status.Description)
	})

	t.Run("sets Error status and records the error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartHandlerSpan(ctx, "flaky")
		testErr := errors.New("store unavailable")

		sm.EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "store unavailable", s.Status.Description)

		require.NotEmpty(t, s.Events)
		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := sm.StartPublishSpan(ctx, "anomaly.detected", "evt-1", "corr-1")

		sm.AddSpanEvent(ctx, "retry_scheduled",
			attribute.String("handler", "scheduling"),
			attribute.Int64("attempt", 2),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "retry_scheduled" {
				found = true
				var handler string
				var attempt int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "handler":
						handler = attr.Value.AsString()
					case "attempt":
						attempt = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, "scheduling", handler)
				assert.Equal(t, int64(2), attempt)
			}
		}
		assert.True(t, found, "Expected to find retry_scheduled event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "test_event")
		})
	})
}
