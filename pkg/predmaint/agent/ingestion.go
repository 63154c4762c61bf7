package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
	"github.com/driftwatch/predmaint/pkg/predmaint/guard"
)

// Reading is a raw sensor reading handed to the ingestion boundary by the
// excluded HTTP/CLI layer.
type Reading struct {
	SensorID   string
	Value      float64
	Unit       string
	RecordedAt time.Time
}

// IngestionAgent accepts readings at the system boundary. It consults the
// idempotency guard before publishing, so client retries under at-least-once
// semantics do not produce duplicate SensorDataReceived events.
//
// It also subscribes to SimulationTick and synthesizes one reading per tick,
// which drives the pipeline in simulations and tests.
type IngestionAgent struct {
	Base
	bus   *event.Bus
	guard guard.Guard

	// Simulate generates a reading for a simulation tick. Nil disables
	// the simulation path.
	Simulate func(seq int) Reading
}

// NewIngestionAgent creates the ingestion agent. g may be nil, in which case
// every reading is accepted.
func NewIngestionAgent(g guard.Guard) *IngestionAgent {
	a := &IngestionAgent{
		Base:  NewBase("ingestion", "accept sensor readings", "suppress duplicate submissions"),
		guard: g,
	}
	return a
}

// Start implements Agent.
func (a *IngestionAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		a.bus = bus
		return a.subscribe(bus, event.TypeSimulationTick, event.HandlerFunc(a.handleTick))
	})
}

// Stop implements Agent.
func (a *IngestionAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// Ingest validates a reading, checks the idempotency key, and publishes a
// SensorDataReceived event. idemKey is the request-level idempotency key
// supplied by the caller; empty means no de-duplication. Returns false
// without publishing when the key was already seen.
//
// The guard is advisory: guard errors degrade to "accept" via guard.FailOpen.
func (a *IngestionAgent) Ingest(ctx context.Context, r Reading, idemKey string) (event.Envelope, bool, error) {
	if r.SensorID == "" {
		return event.Envelope{}, false, &pmerrors.ConfigError{Op: "ingest", Message: "reading has no sensor id"}
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return event.Envelope{}, false, &pmerrors.ConfigError{Op: "ingest", Message: fmt.Sprintf("reading for %s has non-finite value", r.SensorID)}
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}

	if idemKey != "" {
		seen, _ := guard.FailOpen{Guard: a.guard, Logger: a.Logger()}.CheckAndSet(ctx, idemKey)
		if seen {
			return event.Envelope{}, false, nil
		}
	}

	evt := event.New(event.SensorDataReceived{
		SensorID:   r.SensorID,
		Value:      r.Value,
		Unit:       r.Unit,
		RecordedAt: r.RecordedAt,
	})
	if _, err := a.bus.Publish(ctx, evt); err != nil {
		return event.Envelope{}, false, err
	}
	return evt, true, nil
}

func (a *IngestionAgent) handleTick(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	if a.Simulate == nil {
		return nil, nil
	}

	tick := evt.Payload().(event.SimulationTick)
	r := a.Simulate(tick.Seq)
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}

	return []event.Envelope{
		event.NewFromParent(evt, event.SensorDataReceived{
			SensorID:   r.SensorID,
			Value:      r.Value,
			Unit:       r.Unit,
			RecordedAt: r.RecordedAt,
		}),
	}, nil
}
