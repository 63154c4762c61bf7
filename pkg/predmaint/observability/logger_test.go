package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// TestNilLoggerSafe verifies every helper tolerates a nil logger.
func TestNilLoggerSafe(t *testing.T) {
	LogPublish(nil, "t", "e1", "c1", 2)
	LogHandlerError(nil, "t", "e1", "h", 1, errors.New("x"))
	LogDeadLetter(nil, "t", "e1", "c1", "h", 3, errors.New("x"))
	LogDropped(nil, "t", "e1", "h", 3, errors.New("x"))
	LogAbandoned(nil, 4, time.Second)
	LogAgentStart(nil, "a", 1)
	LogAgentStop(nil, "a")
	LogAgentError(nil, "a", "start", errors.New("x"))
	assert.Nil(t, EnrichLogger(nil, "e1", "c1", "h"))
}

func TestLogPublish(t *testing.T) {
	logger, buf := captureLogger()

	LogPublish(logger, "sensor.data_received", "evt-1", "corr-1", 3)

	out := buf.String()
	assert.Contains(t, out, "sensor.data_received")
	assert.Contains(t, out, "evt-1")
	assert.Contains(t, out, "corr-1")
}

func TestLogDeadLetter(t *testing.T) {
	logger, buf := captureLogger()

	LogDeadLetter(logger, "anomaly.detected", "evt-1", "corr-1", "scheduler", 3, errors.New("store down"))

	out := buf.String()
	assert.Contains(t, out, "scheduler")
	assert.Contains(t, out, "store down")
	assert.True(t, strings.Contains(out, "level=ERROR") || strings.Contains(out, "level=WARN"),
		"dead letters must log at warning or above: %s", out)
}

func TestEnrichLogger(t *testing.T) {
	logger, buf := captureLogger()

	enriched := EnrichLogger(logger, "evt-1", "corr-1", "processing")
	enriched.Info("handled")

	out := buf.String()
	assert.Contains(t, out, "evt-1")
	assert.Contains(t, out, "corr-1")
	assert.Contains(t, out, "processing")
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	elapsed := done()
	assert.GreaterOrEqual(t, elapsed, 10.0)
}
