package agent

import (
	"context"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// Prediction is a failure forecast produced by a Predictor.
type Prediction struct {
	Component   string
	Probability float64
	Confidence  float64
	HorizonDays int
}

// Predictor forecasts component failures from a detected anomaly. The real
// model runs out of process; implementations wrap whatever inference
// transport the deployment uses.
type Predictor interface {
	Predict(ctx context.Context, anomaly event.AnomalyDetected) (Prediction, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, anomaly event.AnomalyDetected) (Prediction, error)

func (f PredictorFunc) Predict(ctx context.Context, anomaly event.AnomalyDetected) (Prediction, error) {
	return f(ctx, anomaly)
}

// HeuristicPredictor maps the anomaly score directly onto a failure
// probability. It stands in for a trained model in simulations and tests.
type HeuristicPredictor struct{}

func (HeuristicPredictor) Predict(_ context.Context, anomaly event.AnomalyDetected) (Prediction, error) {
	prob := anomaly.Score - 1
	if prob < 0 {
		prob = 0
	}
	if prob > 1 {
		prob = 1
	}

	confidence := 0.6
	if anomaly.Severity == "critical" {
		confidence = 0.9
	}

	return Prediction{
		Component:   anomaly.SensorID,
		Probability: prob,
		Confidence:  confidence,
		HorizonDays: 14,
	}, nil
}

// PredictionAgent turns detected anomalies into maintenance forecasts by
// consulting a Predictor.
type PredictionAgent struct {
	Base
	predictor Predictor
}

// NewPredictionAgent creates the prediction agent. A nil predictor falls
// back to HeuristicPredictor.
func NewPredictionAgent(p Predictor) *PredictionAgent {
	if p == nil {
		p = HeuristicPredictor{}
	}
	return &PredictionAgent{
		Base:      NewBase("prediction", "forecast component failures"),
		predictor: p,
	}
}

// Start implements Agent.
func (a *PredictionAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribe(bus, event.TypeAnomalyDetected, event.HandlerFunc(a.handle))
	})
}

// Stop implements Agent.
func (a *PredictionAgent) Stop(context.Context) error {
	return a.stop(nil)
}

func (a *PredictionAgent) handle(ctx context.Context, evt event.Envelope) ([]event.Envelope, error) {
	anomaly := evt.Payload().(event.AnomalyDetected)

	pred, err := a.predictor.Predict(ctx, anomaly)
	if err != nil {
		return nil, err
	}

	return []event.Envelope{
		event.NewFromParent(evt, event.MaintenancePredicted{
			SensorID:    anomaly.SensorID,
			Component:   pred.Component,
			Probability: pred.Probability,
			Confidence:  pred.Confidence,
			HorizonDays: pred.HorizonDays,
		}),
	}, nil
}
