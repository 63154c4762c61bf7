package event_test

import (
	"testing"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

func TestNewEnvelope(t *testing.T) {
	evt := event.New(event.SensorDataReceived{SensorID: "s1", Value: 42})

	if evt.ID() == "" {
		t.Error("expected generated event id")
	}
	if evt.CorrelationID() != evt.ID() {
		t.Errorf("root event correlation %q, want its own id %q", evt.CorrelationID(), evt.ID())
	}
	if evt.Type() != event.TypeSensorDataReceived {
		t.Errorf("type = %q, want %q", evt.Type(), event.TypeSensorDataReceived)
	}
	if evt.OccurredAt().IsZero() {
		t.Error("expected occurred-at timestamp")
	}
	if evt.Payload().(event.SensorDataReceived).Value != 42 {
		t.Error("payload lost")
	}
}

func TestNewEnvelopeOptions(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := event.New(event.SimulationTick{Seq: 7},
		event.WithEventID("evt-1"),
		event.WithCorrelationID("corr-1"),
		event.WithOccurredAt(at))

	if evt.ID() != "evt-1" {
		t.Errorf("id = %q", evt.ID())
	}
	if evt.CorrelationID() != "corr-1" {
		t.Errorf("correlation = %q", evt.CorrelationID())
	}
	if !evt.OccurredAt().Equal(at) {
		t.Errorf("occurredAt = %v", evt.OccurredAt())
	}
}

func TestNewFromParent(t *testing.T) {
	parent := event.New(event.SensorDataReceived{SensorID: "s1"})
	child := event.NewFromParent(parent, event.DataProcessed{SensorID: "s1"})

	if child.CorrelationID() != parent.CorrelationID() {
		t.Errorf("child correlation %q, want %q", child.CorrelationID(), parent.CorrelationID())
	}
	if child.ID() == parent.ID() {
		t.Error("child must get a fresh event id")
	}

	grandchild := event.NewFromParent(child, event.AnomalyDetected{SensorID: "s1"})
	if grandchild.CorrelationID() != parent.CorrelationID() {
		t.Error("correlation id must survive multiple hops")
	}
}

func TestPayloadTypeTags(t *testing.T) {
	payloads := []event.Payload{
		event.SensorDataReceived{},
		event.DataProcessed{},
		event.AnomalyDetected{},
		event.MaintenancePredicted{},
		event.MaintenanceScheduled{},
		event.DecisionRequested{},
		event.DecisionMade{},
		event.NotificationSent{},
		event.ModelDriftDetected{},
		event.ReportGenerated{},
		event.SimulationTick{},
	}

	seen := make(map[event.Type]bool)
	for _, p := range payloads {
		tag := p.EventType()
		if tag == "" {
			t.Errorf("%T has empty type tag", p)
		}
		if seen[tag] {
			t.Errorf("duplicate type tag %q", tag)
		}
		seen[tag] = true

		if evt := event.New(p); evt.Type() != tag {
			t.Errorf("envelope type %q disagrees with payload tag %q", evt.Type(), tag)
		}
	}
}
