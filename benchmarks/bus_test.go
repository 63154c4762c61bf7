package benchmarks

import (
	"context"
	"testing"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

func noopHandler() event.Handler {
	return event.HandlerFunc(func(context.Context, event.Envelope) ([]event.Envelope, error) {
		return nil, nil
	})
}

func startBus(b *testing.B, subscribers int) *event.Bus {
	b.Helper()
	bus := event.NewBus(event.BusConfig{Retry: pmerrors.NoRetry})
	if err := bus.Start(); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < subscribers; i++ {
		if _, err := bus.Subscribe(event.TypeSensorDataReceived, noopHandler()); err != nil {
			b.Fatal(err)
		}
	}
	b.Cleanup(func() { bus.Stop(context.Background()) })
	return bus
}

// BenchmarkPublish_1 publishes to a single subscriber and waits for delivery.
func BenchmarkPublish_1(b *testing.B) {
	bus := startBus(b, 1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, _ := bus.Publish(ctx, event.New(event.SensorDataReceived{SensorID: "s1", Value: 1}))
		res.Wait(ctx)
	}
}

// BenchmarkPublish_Fanout_10 publishes to ten subscribers of one type.
func BenchmarkPublish_Fanout_10(b *testing.B) {
	bus := startBus(b, 10)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, _ := bus.Publish(ctx, event.New(event.SensorDataReceived{SensorID: "s1", Value: 1}))
		res.Wait(ctx)
	}
}

// BenchmarkPublish_FireAndForget publishes without awaiting the outcome.
func BenchmarkPublish_FireAndForget(b *testing.B) {
	bus := startBus(b, 1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = bus.Publish(ctx, event.New(event.SensorDataReceived{SensorID: "s1", Value: 1}))
	}
	b.StopTimer()
}

// BenchmarkPublish_FollowOnChain measures a three-hop handler chain.
func BenchmarkPublish_FollowOnChain(b *testing.B) {
	bus := startBus(b, 0)
	ctx := context.Background()

	bus.Subscribe(event.TypeSensorDataReceived,
		event.HandlerFunc(func(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
			return []event.Envelope{event.NewFromParent(evt, event.DataProcessed{SensorID: "s1", Value: 1})}, nil
		}))
	bus.Subscribe(event.TypeDataProcessed,
		event.HandlerFunc(func(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
			return []event.Envelope{event.NewFromParent(evt, event.AnomalyDetected{SensorID: "s1"})}, nil
		}))

	done := make(chan struct{}, 1)
	bus.Subscribe(event.TypeAnomalyDetected,
		event.HandlerFunc(func(context.Context, event.Envelope) ([]event.Envelope, error) {
			done <- struct{}{}
			return nil, nil
		}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = bus.Publish(ctx, event.New(event.SensorDataReceived{SensorID: "s1", Value: 1}))
		<-done
	}
}

// BenchmarkNewEnvelope measures envelope construction alone.
func BenchmarkNewEnvelope(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = event.New(event.SensorDataReceived{SensorID: "s1", Value: 1})
	}
}
