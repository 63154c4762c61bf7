package event_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

func openSQLiteDLQ(t *testing.T) (*event.SQLiteDLQ, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deadletters.db")
	dlq, err := event.NewSQLiteDLQ(path)
	if err != nil {
		t.Fatalf("open sqlite dlq: %v", err)
	}
	t.Cleanup(func() { dlq.Close() })
	return dlq, path
}

func TestSQLiteDLQRoundTrip(t *testing.T) {
	dlq, _ := openSQLiteDLQ(t)
	ctx := context.Background()

	evt := event.New(event.AnomalyDetected{SensorID: "s1", Value: 97.5, Severity: "warning"})
	dl := event.NewDeadLetter(evt, "scheduler", errors.New("store down"), 3)

	if err := dlq.Append(ctx, dl); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.EventID != dl.EventID || got.EventType != dl.EventType ||
		got.CorrelationID != dl.CorrelationID || got.Handler != dl.Handler {
		t.Errorf("record identity mangled: %+v", got)
	}
	if got.Attempts != 3 || got.ErrorMessage != "store down" {
		t.Errorf("record failure detail mangled: %+v", got)
	}
	if string(got.Payload) != string(dl.Payload) {
		t.Errorf("payload mangled: %s != %s", got.Payload, dl.Payload)
	}

	byType, _ := dlq.CountByType(ctx)
	if byType[event.TypeAnomalyDetected] != 1 {
		t.Errorf("unexpected counts %v", byType)
	}

	if err := dlq.Delete(ctx, dl.EventID, dl.Handler); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, _ := dlq.Count(ctx)
	if count != 0 {
		t.Errorf("count after delete = %d", count)
	}
}

func TestSQLiteDLQSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletters.db")
	ctx := context.Background()

	dlq, err := event.NewSQLiteDLQ(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	evt := event.New(event.SensorDataReceived{SensorID: "s1"})
	dlq.Append(ctx, event.NewDeadLetter(evt, "h", errors.New("x"), 1))
	if err := dlq.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := event.NewSQLiteDLQ(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("dead letters lost across reopen: count = %d", count)
	}
}

func TestSQLiteDLQSameEventAndHandlerReplaces(t *testing.T) {
	dlq, _ := openSQLiteDLQ(t)
	ctx := context.Background()

	evt := event.New(event.SensorDataReceived{SensorID: "s1"})
	dlq.Append(ctx, event.NewDeadLetter(evt, "h", errors.New("first"), 1))
	dlq.Append(ctx, event.NewDeadLetter(evt, "h", errors.New("second"), 2))

	count, _ := dlq.Count(ctx)
	if count != 1 {
		t.Fatalf("expected replace, got %d records", count)
	}
	records, _ := dlq.List(ctx, 0)
	if records[0].ErrorMessage != "second" || records[0].Attempts != 2 {
		t.Errorf("latest record not kept: %+v", records[0])
	}
}

func TestSQLiteDLQClosed(t *testing.T) {
	dlq, _ := openSQLiteDLQ(t)
	dlq.Close()

	evt := event.New(event.SensorDataReceived{SensorID: "s1"})
	if err := dlq.Append(context.Background(), event.NewDeadLetter(evt, "h", errors.New("x"), 1)); err == nil {
		t.Fatal("expected error on closed store")
	}
}
