package agent

import (
	"context"
	"sync"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// PendingDecision is a decision awaiting an operator verdict.
type PendingDecision struct {
	DecisionID string
	Subject    string
	Reason     string
	Options    []string
}

// HumanLoopAgent tracks open DecisionRequested events and exposes Resolve,
// the operator-facing surface that turns a verdict into a DecisionMade
// event on the original correlation chain.
type HumanLoopAgent struct {
	Base
	bus *event.Bus

	mu      sync.Mutex
	pending map[string]event.Envelope
}

// NewHumanLoopAgent creates the human-in-the-loop agent.
func NewHumanLoopAgent() *HumanLoopAgent {
	return &HumanLoopAgent{
		Base:    NewBase("human-loop", "track open decisions", "record operator verdicts"),
		pending: make(map[string]event.Envelope),
	}
}

// Start implements Agent.
func (a *HumanLoopAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		a.bus = bus
		return a.subscribe(bus, event.TypeDecisionRequested, event.HandlerFunc(a.handleRequested))
	})
}

// Stop implements Agent.
func (a *HumanLoopAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// Pending lists the decisions still awaiting a verdict.
func (a *HumanLoopAgent) Pending() []PendingDecision {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]PendingDecision, 0, len(a.pending))
	for _, evt := range a.pending {
		req := evt.Payload().(event.DecisionRequested)
		out = append(out, PendingDecision{
			DecisionID: req.DecisionID,
			Subject:    req.Subject,
			Reason:     req.Reason,
			Options:    req.Options,
		})
	}
	return out
}

// Resolve records an operator verdict for an open decision and publishes the
// resulting DecisionMade. The event carries the correlation id of the
// original request, so downstream consumers see one causal chain. Resolving
// an unknown or already resolved decision returns a ConfigError.
func (a *HumanLoopAgent) Resolve(ctx context.Context, decisionID string, approved bool, decidedBy, note string) (event.Envelope, error) {
	a.mu.Lock()
	source, ok := a.pending[decisionID]
	if ok {
		delete(a.pending, decisionID)
	}
	a.mu.Unlock()

	if !ok {
		return event.Envelope{}, &pmerrors.ConfigError{Op: "resolve", Message: "no pending decision " + decisionID}
	}

	evt := event.NewFromParent(source, event.DecisionMade{
		DecisionID: decisionID,
		Approved:   approved,
		DecidedBy:  decidedBy,
		Note:       note,
	})
	if _, err := a.bus.Publish(ctx, evt); err != nil {
		// Put the decision back so the operator can retry.
		a.mu.Lock()
		a.pending[decisionID] = source
		a.mu.Unlock()
		return event.Envelope{}, err
	}
	return evt, nil
}

func (a *HumanLoopAgent) handleRequested(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	req := evt.Payload().(event.DecisionRequested)

	a.mu.Lock()
	defer a.mu.Unlock()

	// Keep the first delivery; redeliveries carry the same decision id.
	if _, dup := a.pending[req.DecisionID]; !dup {
		a.pending[req.DecisionID] = evt
	}
	return nil, nil
}
