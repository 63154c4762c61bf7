package coordinator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/predmaint/pkg/predmaint/agent"
	"github.com/driftwatch/predmaint/pkg/predmaint/coordinator"
	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
	"github.com/driftwatch/predmaint/pkg/predmaint/guard"
)

// confidentPredictor forecasts above the scheduling confidence floor, so the
// pipeline runs end to end without a human decision.
var confidentPredictor = agent.PredictorFunc(
	func(_ context.Context, anomaly event.AnomalyDetected) (agent.Prediction, error) {
		return agent.Prediction{
			Component:   anomaly.SensorID,
			Probability: 0.8,
			Confidence:  0.9,
			HorizonDays: 14,
		}, nil
	})

func waitForType(t *testing.T, audit *agent.AuditAgent, correlationID string, want event.Type) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range audit.ByCorrelation(correlationID) {
			if e.EventType == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s on chain %s; have %v", want, correlationID, audit.ByCorrelation(correlationID))
}

// TestPipelineGoldenPath drives one anomalous reading through the whole
// fleet and checks the resulting causal chain.
func TestPipelineGoldenPath(t *testing.T) {
	g := guard.NewMemoryGuard(time.Minute)
	defer g.Close()

	dlq := event.NewMemoryDLQ(0)
	bus := event.NewBus(event.BusConfig{DLQ: dlq})

	ingestion := agent.NewIngestionAgent(g)
	notifier := &agent.MemoryNotifier{}
	audit := agent.NewAuditAgent()

	fleet := []agent.Agent{
		ingestion,
		agent.NewProcessingAgent(0, 100),
		agent.NewAnomalyAgent(90, 120),
		agent.NewPredictionAgent(confidentPredictor),
		agent.NewSchedulingAgent(),
		agent.NewNotificationAgent(notifier),
		audit,
	}

	coord := coordinator.New(bus, fleet)
	ctx := context.Background()

	_, err := coord.StartAll(ctx)
	require.NoError(t, err)
	defer coord.StopAll(ctx)

	evt, accepted, err := ingestion.Ingest(ctx, agent.Reading{
		SensorID: "turbine-7",
		Value:    97.5,
		Unit:     "mm/s",
	}, "req-001")
	require.NoError(t, err)
	require.True(t, accepted)

	chain := evt.CorrelationID()
	waitForType(t, audit, chain, event.TypeNotificationSent)

	// The chain runs ingestion -> processing -> detection -> prediction ->
	// scheduling -> notification, all on one correlation id.
	var types []event.Type
	for _, e := range audit.ByCorrelation(chain) {
		types = append(types, e.EventType)
	}
	expected := []event.Type{
		event.TypeSensorDataReceived,
		event.TypeDataProcessed,
		event.TypeAnomalyDetected,
		event.TypeMaintenancePredicted,
		event.TypeMaintenanceScheduled,
		event.TypeNotificationSent,
	}
	assert.Equal(t, expected, types)

	// Nothing failed along the way
	count, _ := dlq.Count(ctx)
	assert.Zero(t, count)
	require.Len(t, notifier.Sent(), 1)

	// The milestone recorder saw the same chain in the same relative order.
	// It runs on its own lane, so give it a moment to catch up.
	var milestones []event.Type
	milestoneDeadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(milestoneDeadline) {
		milestones = milestones[:0]
		for _, m := range coord.Milestones() {
			if m.CorrelationID == chain {
				milestones = append(milestones, m.EventType)
			}
		}
		if len(milestones) >= len(expected) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, expected, milestones)

	// A duplicate client submission changes nothing downstream
	_, accepted, err = ingestion.Ingest(ctx, agent.Reading{SensorID: "turbine-7", Value: 97.5}, "req-001")
	require.NoError(t, err)
	assert.False(t, accepted)
}

// TestPipelineDeadLetter wires a persistently failing consumer into the
// fleet and checks the failure is contained in one dead letter.
func TestPipelineDeadLetter(t *testing.T) {
	dlq := event.NewMemoryDLQ(0)
	bus := event.NewBus(event.BusConfig{
		DLQ: dlq,
		Retry: pmerrors.RetryConfig{
			MaxAttempts: 3,
			Strategy:    pmerrors.FixedDelay(time.Millisecond),
		},
	})

	ingestion := agent.NewIngestionAgent(nil)
	audit := agent.NewAuditAgent()
	coord := coordinator.New(bus, []agent.Agent{ingestion, agent.NewProcessingAgent(0, 100), audit})
	ctx := context.Background()

	_, err := coord.StartAll(ctx)
	require.NoError(t, err)
	defer coord.StopAll(ctx)

	_, err = bus.Subscribe(event.TypeDataProcessed,
		event.HandlerFunc(func(context.Context, event.Envelope) ([]event.Envelope, error) {
			return nil, errors.New("downstream store unavailable")
		}),
		event.WithSubscriberName("flaky-store"))
	require.NoError(t, err)

	evt, accepted, err := ingestion.Ingest(ctx, agent.Reading{SensorID: "pump-3", Value: 12.4}, "")
	require.NoError(t, err)
	require.True(t, accepted)

	deadline := time.Now().Add(3 * time.Second)
	for {
		if n, _ := dlq.Count(ctx); n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	records, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1, "exactly one handler exhausted its budget")

	dl := records[0]
	assert.Equal(t, event.TypeDataProcessed, dl.EventType)
	assert.Equal(t, "flaky-store", dl.Handler)
	assert.Equal(t, 3, dl.Attempts)
	assert.Equal(t, evt.CorrelationID(), dl.CorrelationID, "dead letter keeps the causal chain")

	// The healthy part of the pipeline was untouched
	waitForType(t, audit, evt.CorrelationID(), event.TypeDataProcessed)
}
