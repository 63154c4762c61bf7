package agent

import (
	"context"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// AnomalyAgent flags processed readings that breach the configured
// thresholds.
type AnomalyAgent struct {
	Base

	// Warning and Critical are absolute value thresholds. A reading at or
	// above Warning is anomalous; at or above Critical it is escalated.
	Warning  float64
	Critical float64
}

// NewAnomalyAgent creates the detection agent with the given thresholds.
func NewAnomalyAgent(warning, critical float64) *AnomalyAgent {
	return &AnomalyAgent{
		Base:     NewBase("anomaly-detection", "detect threshold breaches"),
		Warning:  warning,
		Critical: critical,
	}
}

// Start implements Agent.
func (a *AnomalyAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribe(bus, event.TypeDataProcessed, event.HandlerFunc(a.handle))
	})
}

// Stop implements Agent.
func (a *AnomalyAgent) Stop(context.Context) error {
	return a.stop(nil)
}

func (a *AnomalyAgent) handle(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	processed := evt.Payload().(event.DataProcessed)

	if processed.Value < a.Warning {
		return nil, nil
	}

	severity := "warning"
	if processed.Value >= a.Critical {
		severity = "critical"
	}

	score := 0.0
	if a.Warning > 0 {
		score = processed.Value / a.Warning
	}

	return []event.Envelope{
		event.NewFromParent(evt, event.AnomalyDetected{
			SensorID: processed.SensorID,
			Value:    processed.Value,
			Score:    score,
			Rule:     "threshold",
			Severity: severity,
		}),
	}, nil
}
