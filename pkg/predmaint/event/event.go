// Package event provides the event model and in-process publish/subscribe
// bus that the predmaint agents coordinate through.
//
// The package implements:
//   - Immutable typed envelopes with correlation and causation tracking
//   - A closed set of domain payload variants (sum type over Payload)
//   - Bus for pub/sub fan-out with per-handler retry, timeout and isolation
//   - Dead letter capture for handlers that exhaust their retry budget
//   - Registry for payload validation
//
// Delivery is at-least-once: a failing handler is redelivered the same
// envelope verbatim on every attempt, so handlers must be idempotent.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Envelope is the immutable message unit routed by the bus. Once constructed
// it is never mutated; republishing requires building a new envelope via
// NewFromParent so the correlation id is carried forward.
type Envelope struct {
	id            string
	correlationID string
	occurredAt    time.Time
	payload       Payload
}

// ID returns the unique event identifier, generated at construction.
// It is used for logging and tracing, not for de-duplication.
func (e Envelope) ID() string { return e.id }

// CorrelationID returns the identifier threading a causal chain of events.
func (e Envelope) CorrelationID() string { return e.correlationID }

// OccurredAt returns when the event was constructed.
func (e Envelope) OccurredAt() time.Time { return e.occurredAt }

// Type returns the payload discriminator used for subscriber lookup.
func (e Envelope) Type() Type { return e.payload.EventType() }

// Payload returns the variant-specific payload.
func (e Envelope) Payload() Payload { return e.payload }

// Option configures envelope creation.
type Option func(*envelopeConfig)

type envelopeConfig struct {
	id            string
	correlationID string
	occurredAt    time.Time
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(cfg *envelopeConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID threading related events.
func WithCorrelationID(id string) Option {
	return func(cfg *envelopeConfig) {
		cfg.correlationID = id
	}
}

// WithOccurredAt sets a specific timestamp (default: time.Now()).
func WithOccurredAt(t time.Time) Option {
	return func(cfg *envelopeConfig) {
		cfg.occurredAt = t
	}
}

// New creates an envelope for the given payload.
// If no correlation ID is supplied the event ID becomes the root of the chain.
func New(payload Payload, opts ...Option) Envelope {
	cfg := &envelopeConfig{
		id:         uuid.New().String(),
		occurredAt: time.Now(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.correlationID == "" {
		cfg.correlationID = cfg.id
	}

	return Envelope{
		id:            cfg.id,
		correlationID: cfg.correlationID,
		occurredAt:    cfg.occurredAt,
		payload:       payload,
	}
}

// NewFromParent creates an envelope caused by a parent event, inheriting the
// parent's correlation ID. Every downstream event produced while handling an
// event must be built this way.
func NewFromParent(parent Envelope, payload Payload, opts ...Option) Envelope {
	allOpts := append([]Option{WithCorrelationID(parent.CorrelationID())}, opts...)
	return New(payload, allOpts...)
}

// Handler processes events and optionally returns follow-on events, which
// the bus publishes under the same correlation chain.
type Handler interface {
	Handle(ctx context.Context, evt Envelope) ([]Envelope, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Envelope) ([]Envelope, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Envelope) ([]Envelope, error) {
	return f(ctx, evt)
}
