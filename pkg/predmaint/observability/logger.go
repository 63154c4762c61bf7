// Package observability provides structured logging, metrics, and tracing
// for the predmaint event core.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds delivery context to a logger.
// Returns a new logger with event_id, correlation_id, and handler fields.
func EnrichLogger(logger *slog.Logger, eventID, correlationID, handler string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.String("handler", handler),
	)
}

// LogPublish logs acceptance of an event by the bus.
func LogPublish(logger *slog.Logger, eventType, eventID, correlationID string, subscribers int) {
	if logger == nil {
		return
	}
	logger.Debug("event published",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.Int("subscribers", subscribers),
	)
}

// LogHandlerError logs a failed handler attempt.
func LogHandlerError(logger *slog.Logger, eventType, eventID, handler string, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("handler attempt failed",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("handler", handler),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// LogDeadLetter logs retry exhaustion for an (event, handler) pair.
func LogDeadLetter(logger *slog.Logger, eventType, eventID, correlationID, handler string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Error("delivery dead-lettered",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.String("handler", handler),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogDropped logs an exhausted delivery discarded because dead-lettering is
// disabled.
func LogDropped(logger *slog.Logger, eventType, eventID, handler string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("delivery dropped after retries",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("handler", handler),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogAbandoned logs in-flight work given up during shutdown.
func LogAbandoned(logger *slog.Logger, pending int, grace time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("shutdown grace period expired",
		slog.Int("pending_deliveries", pending),
		slog.Duration("grace_period", grace),
	)
}

// LogAgentStart logs a completed agent start.
func LogAgentStart(logger *slog.Logger, agent string, subscriptions int) {
	if logger == nil {
		return
	}
	logger.Info("agent started",
		slog.String("agent", agent),
		slog.Int("subscriptions", subscriptions),
	)
}

// LogAgentStop logs a completed agent stop.
func LogAgentStop(logger *slog.Logger, agent string) {
	if logger == nil {
		return
	}
	logger.Info("agent stopped",
		slog.String("agent", agent),
	)
}

// LogAgentError logs an agent lifecycle failure.
func LogAgentError(logger *slog.Logger, agent, transition string, err error) {
	if logger == nil {
		return
	}
	logger.Error("agent lifecycle failure",
		slog.String("agent", agent),
		slog.String("transition", transition),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
