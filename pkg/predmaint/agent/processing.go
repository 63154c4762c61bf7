package agent

import (
	"context"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// ProcessingAgent turns raw readings into validated, normalized records.
type ProcessingAgent struct {
	Base

	// Min and Max bound the expected physical range. Readings outside the
	// range are kept but marked suspect rather than discarded, so the
	// anomaly detector still sees them.
	Min, Max float64
}

// NewProcessingAgent creates the processing agent with the given expected
// physical range.
func NewProcessingAgent(min, max float64) *ProcessingAgent {
	return &ProcessingAgent{
		Base: NewBase("processing", "validate readings", "normalize readings"),
		Min:  min,
		Max:  max,
	}
}

// Start implements Agent.
func (a *ProcessingAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribe(bus, event.TypeSensorDataReceived, event.HandlerFunc(a.handle))
	})
}

// Stop implements Agent.
func (a *ProcessingAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// handle is a pure function of the reading: redelivery produces the same
// DataProcessed payload, so downstream de-duplication by event semantics is
// safe.
func (a *ProcessingAgent) handle(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	raw := evt.Payload().(event.SensorDataReceived)

	quality := "good"
	if raw.Value < a.Min || raw.Value > a.Max {
		quality = "suspect"
	}

	span := a.Max - a.Min
	normalized := 0.0
	if span > 0 {
		normalized = (raw.Value - a.Min) / span
	}

	return []event.Envelope{
		event.NewFromParent(evt, event.DataProcessed{
			SensorID:   raw.SensorID,
			Value:      raw.Value,
			Normalized: normalized,
			Quality:    quality,
		}),
	}, nil
}
