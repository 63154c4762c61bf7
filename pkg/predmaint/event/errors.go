package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventError represents an error during event delivery.
type EventError struct {
	EventID string // event that failed
	Handler string // handler that failed (if known)
	Message string
	Err     error
	Attempt int
}

// Error implements the error interface.
func (e *EventError) Error() string {
	switch {
	case e.Err != nil && e.EventID != "":
		return fmt.Sprintf("event %s: %s: %v", e.EventID, e.Message, e.Err)
	case e.EventID != "":
		return fmt.Sprintf("event %s: %s", e.EventID, e.Message)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}

// DeadLetter records an event whose handler permanently failed after
// exhausting its retry budget. Exactly one record is produced per
// (event, handler) pair, after the final attempt.
type DeadLetter struct {
	EventID       string    `json:"event_id"`
	EventType     Type      `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	Payload       []byte    `json:"payload"`
	Handler       string    `json:"handler"`
	ErrorMessage  string    `json:"error_message"`
	Attempts      int       `json:"attempts"`
	ExhaustedAt   time.Time `json:"exhausted_at"`
}

// NewDeadLetter builds the record for an exhausted (event, handler) pair.
// The payload is serialized so the record stands alone for diagnostics.
func NewDeadLetter(evt Envelope, handler string, err error, attempts int) *DeadLetter {
	data, _ := json.Marshal(evt.Payload())
	return &DeadLetter{
		EventID:       evt.ID(),
		EventType:     evt.Type(),
		CorrelationID: evt.CorrelationID(),
		Payload:       data,
		Handler:       handler,
		ErrorMessage:  err.Error(),
		Attempts:      attempts,
		ExhaustedAt:   time.Now(),
	}
}

// DeadLetterQueue stores permanently failed deliveries for operator
// diagnostics. Records are append-only; replay is operator-driven, never
// automatic.
type DeadLetterQueue interface {
	// Append adds a dead letter record.
	Append(ctx context.Context, dl *DeadLetter) error

	// List returns up to limit records, oldest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*DeadLetter, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// CountByType returns record counts grouped by event type.
	CountByType(ctx context.Context) (map[Type]int, error)

	// Delete removes a record after operator review.
	Delete(ctx context.Context, eventID, handler string) error
}
