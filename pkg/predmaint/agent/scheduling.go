package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// DefaultConfidenceFloor is the forecast confidence below which scheduling
// defers to a human decision instead of cutting a work order directly.
const DefaultConfidenceFloor = 0.75

// SchedulingAgent turns maintenance forecasts into work orders. Forecasts
// above the confidence floor are scheduled immediately; the rest raise a
// DecisionRequested and wait for the matching DecisionMade.
type SchedulingAgent struct {
	Base

	// ConfidenceFloor gates automatic scheduling.
	ConfidenceFloor float64

	// Technician is assigned to every work order. A real deployment would
	// consult a roster service here.
	Technician string

	// LeadTime and WindowLength shape the maintenance window relative to
	// the time the work order is cut.
	LeadTime     time.Duration
	WindowLength time.Duration

	mu      sync.Mutex
	seen    *seenSet
	pending map[string]pendingWork
}

type pendingWork struct {
	source     event.Envelope
	prediction event.MaintenancePredicted
}

// NewSchedulingAgent creates the scheduling agent with default windowing.
func NewSchedulingAgent() *SchedulingAgent {
	return &SchedulingAgent{
		Base:            NewBase("scheduling", "cut maintenance work orders", "escalate low-confidence forecasts"),
		ConfidenceFloor: DefaultConfidenceFloor,
		Technician:      "on-call",
		LeadTime:        24 * time.Hour,
		WindowLength:    4 * time.Hour,
		seen:            newSeenSet(0),
		pending:         make(map[string]pendingWork),
	}
}

// Start implements Agent.
func (a *SchedulingAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		if err := a.subscribe(bus, event.TypeMaintenancePredicted, event.HandlerFunc(a.handlePredicted)); err != nil {
			return err
		}
		return a.subscribe(bus, event.TypeDecisionMade, event.HandlerFunc(a.handleDecision))
	})
}

// Stop implements Agent.
func (a *SchedulingAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// Pending returns the decision ids currently awaiting a human verdict.
func (a *SchedulingAgent) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	return ids
}

func (a *SchedulingAgent) handlePredicted(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	pred := evt.Payload().(event.MaintenancePredicted)

	a.mu.Lock()
	defer a.mu.Unlock()

	// Redelivered events map to the same work order, so a second delivery
	// must not cut a second one.
	if a.seen.observe(evt.ID()) {
		return nil, nil
	}

	if pred.Confidence < a.ConfidenceFloor {
		decisionID := "dec-" + evt.ID()
		a.pending[decisionID] = pendingWork{source: evt, prediction: pred}
		return []event.Envelope{
			event.NewFromParent(evt, event.DecisionRequested{
				DecisionID: decisionID,
				Subject:    pred.Component,
				Reason: fmt.Sprintf("forecast confidence %.2f below floor %.2f",
					pred.Confidence, a.ConfidenceFloor),
				Options: []string{"approve", "reject"},
			}),
		}, nil
	}

	return []event.Envelope{a.workOrder(evt, pred)}, nil
}

func (a *SchedulingAgent) handleDecision(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	decision := evt.Payload().(event.DecisionMade)

	a.mu.Lock()
	defer a.mu.Unlock()

	work, ok := a.pending[decision.DecisionID]
	if !ok {
		// Not ours, or a redelivery of an already resolved decision.
		return nil, nil
	}
	delete(a.pending, decision.DecisionID)

	if !decision.Approved {
		return nil, nil
	}
	return []event.Envelope{a.workOrder(work.source, work.prediction)}, nil
}

// workOrder derives the work order id from the forecast event id, so replays
// of the same forecast produce the same order.
func (a *SchedulingAgent) workOrder(source event.Envelope, pred event.MaintenancePredicted) event.Envelope {
	start := time.Now().Add(a.LeadTime)
	return event.NewFromParent(source, event.MaintenanceScheduled{
		WorkOrderID: "wo-" + source.ID(),
		SensorID:    pred.SensorID,
		Component:   pred.Component,
		Technician:  a.Technician,
		WindowStart: start,
		WindowEnd:   start.Add(a.WindowLength),
	})
}
