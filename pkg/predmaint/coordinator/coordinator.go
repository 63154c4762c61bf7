// Package coordinator owns the agent fleet: it starts and stops agents as a
// group against a shared bus, tracks their health, and keeps a bounded log
// of pipeline milestones for operator dashboards.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/driftwatch/predmaint/pkg/predmaint/agent"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// Result reports the outcome of one agent's start or stop.
type Result struct {
	Agent string
	Err   error
}

// Coordinator supervises a fixed fleet of agents over one bus. Agent
// failures during StartAll do not abort the group; the fleet runs degraded
// and the failures are reported per agent.
type Coordinator struct {
	bus    *event.Bus
	agents []agent.Agent
	logger *slog.Logger

	milestones *MilestoneLog
	recorder   *event.Subscription

	mu      sync.Mutex
	started bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMilestoneCapacity bounds the milestone log.
func WithMilestoneCapacity(capacity int) Option {
	return func(c *Coordinator) { c.milestones = NewMilestoneLog(capacity) }
}

// New creates a coordinator for the given bus and agents.
func New(bus *event.Bus, agents []agent.Agent, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:        bus,
		agents:     agents,
		milestones: NewMilestoneLog(DefaultMilestoneCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartAll starts the bus, registers the milestone recorder, then starts
// every agent concurrently. A failing agent is recorded and left in its
// failed state; the rest of the fleet keeps running. The returned error
// joins the per-agent failures, and the Result slice carries the outcome of
// every agent regardless.
func (c *Coordinator) StartAll(ctx context.Context) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil, nil
	}

	if err := c.bus.Start(); err != nil {
		return nil, err
	}

	rec, err := c.bus.SubscribeAll(event.HandlerFunc(c.recordMilestone),
		event.WithSubscriberName("coordinator.milestones"))
	if err != nil {
		return nil, err
	}
	c.recorder = rec

	results := c.fanOut(ctx, func(ctx context.Context, a agent.Agent) error {
		return a.Start(ctx, c.bus)
	})

	c.started = true

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			if c.logger != nil {
				c.logger.Error("agent failed to start", "agent", r.Agent, "error", r.Err)
			}
		}
	}
	return results, errors.Join(errs...)
}

// StopAll stops every agent concurrently, then drains and stops the bus.
// Safe to call on a coordinator that never started.
func (c *Coordinator) StopAll(ctx context.Context) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, nil
	}
	c.started = false

	results := c.fanOut(ctx, func(ctx context.Context, a agent.Agent) error {
		return a.Stop(ctx)
	})

	if c.recorder != nil {
		c.recorder.Unsubscribe()
		c.recorder = nil
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if err := c.bus.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

// HealthSnapshot reports the current health of every agent, keyed by name.
func (c *Coordinator) HealthSnapshot() map[string]agent.Health {
	out := make(map[string]agent.Health, len(c.agents))
	for _, a := range c.agents {
		out[a.Name()] = a.Health()
	}
	return out
}

// Milestones returns the retained milestone log, oldest first.
func (c *Coordinator) Milestones() []Milestone {
	return c.milestones.Snapshot()
}

// fanOut applies op to every agent concurrently and collects results in
// registration order.
func (c *Coordinator) fanOut(ctx context.Context, op func(context.Context, agent.Agent) error) []Result {
	results := make([]Result, len(c.agents))

	var wg sync.WaitGroup
	for i, a := range c.agents {
		wg.Add(1)
		go func(i int, a agent.Agent) {
			defer wg.Done()
			results[i] = Result{Agent: a.Name(), Err: op(ctx, a)}
		}(i, a)
	}
	wg.Wait()

	return results
}

func (c *Coordinator) recordMilestone(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	c.milestones.Record(Milestone{
		EventType:     evt.Type(),
		EventID:       evt.ID(),
		CorrelationID: evt.CorrelationID(),
		OccurredAt:    evt.OccurredAt(),
	})
	return nil, nil
}
