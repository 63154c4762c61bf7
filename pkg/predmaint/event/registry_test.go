package event_test

import (
	"context"
	"errors"
	"testing"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

func TestRegistryValidate(t *testing.T) {
	reg := event.NewRegistry()

	err := reg.Register(&event.Schema{
		Type:        event.TypeSensorDataReceived,
		Description: "raw reading accepted at the boundary",
		Validator: func(evt event.Envelope) error {
			if evt.Payload().(event.SensorDataReceived).SensorID == "" {
				return errors.New("missing sensor id")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	good := event.New(event.SensorDataReceived{SensorID: "s1"})
	if err := reg.Validate(good); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	bad := event.New(event.SensorDataReceived{})
	if err := reg.Validate(bad); err == nil {
		t.Error("invalid event passed validation")
	}

	// Unregistered types pass
	if err := reg.Validate(event.New(event.SimulationTick{Seq: 1})); err != nil {
		t.Errorf("unregistered type rejected: %v", err)
	}
}

func TestRegistryRegisterRequiresType(t *testing.T) {
	reg := event.NewRegistry()

	if err := reg.Register(nil); err == nil {
		t.Error("expected error for nil schema")
	}
	if err := reg.Register(&event.Schema{}); err == nil {
		t.Error("expected error for empty type")
	}
	if len(reg.Types()) != 0 {
		t.Errorf("bad schemas were registered: %v", reg.Types())
	}
}

func TestBusValidateEvents(t *testing.T) {
	reg := event.NewRegistry()
	reg.Register(&event.Schema{
		Type: event.TypeSensorDataReceived,
		Validator: func(evt event.Envelope) error {
			if evt.Payload().(event.SensorDataReceived).SensorID == "" {
				return errors.New("missing sensor id")
			}
			return nil
		},
	})

	bus := startBus(t, event.BusConfig{Registry: reg, ValidateEvents: true})

	if _, err := bus.Publish(context.Background(), event.New(event.SensorDataReceived{})); err == nil {
		t.Fatal("expected publish rejection for invalid payload")
	}
	if _, err := bus.Publish(context.Background(), event.New(event.SensorDataReceived{SensorID: "s1"})); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}
