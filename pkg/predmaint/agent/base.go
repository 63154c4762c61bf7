package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/event"
	"github.com/driftwatch/predmaint/pkg/predmaint/observability"
)

// Base carries the lifecycle state machine and subscription bookkeeping
// shared by all agents. Concrete agents embed it and implement Start by
// calling start with their registration function.
type Base struct {
	name         string
	capabilities []string
	logger       *slog.Logger
	metrics      observability.MetricsRecorder

	mu      sync.Mutex
	state   State
	lastErr error
	since   time.Time
	subs    []*event.Subscription
}

// NewBase creates the embedded lifecycle helper.
func NewBase(name string, capabilities ...string) Base {
	return Base{
		name:         name,
		capabilities: capabilities,
		since:        time.Now(),
	}
}

// Name implements Agent.
func (b *Base) Name() string { return b.name }

// Capabilities implements Agent.
func (b *Base) Capabilities() []string { return b.capabilities }

// SetLogger attaches a structured logger. Nil disables logging.
func (b *Base) SetLogger(logger *slog.Logger) { b.logger = logger }

// SetMetrics attaches a metrics recorder. Nil disables metrics.
func (b *Base) SetMetrics(m observability.MetricsRecorder) { b.metrics = m }

// Logger returns the attached logger, which may be nil.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Health implements Agent.
func (b *Base) Health() Health {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := Health{State: b.state, Since: b.since}
	if b.lastErr != nil {
		h.LastError = b.lastErr.Error()
	}
	return h
}

// start drives the stopped/failed -> starting -> running transition around
// the agent's registration function. Calling start on a running agent is a
// no-op, so Start is idempotent and never double-subscribes.
func (b *Base) start(register func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateRunning, StateStarting:
		return nil
	case StateStopping:
		return &pmerrors.ConfigError{Op: "agent.start", Message: b.name + " is stopping"}
	}

	b.transition(StateStarting)

	if err := register(); err != nil {
		// Partial registrations must not leak live subscriptions.
		b.unsubscribeAll()
		b.lastErr = err
		b.transition(StateFailed)
		lErr := &pmerrors.LifecycleError{Agent: b.name, Transition: "start", Err: err}
		observability.LogAgentError(b.logger, b.name, "start", err)
		return lErr
	}

	b.lastErr = nil
	b.transition(StateRunning)
	observability.LogAgentStart(b.logger, b.name, len(b.subs))
	return nil
}

// stop drives teardown. Safe to call in any state, including after a
// partially failed Start; a failed agent stays failed (only a fresh Start
// recovers it) but still releases its subscriptions.
func (b *Base) stop(release func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateStopped {
		return nil
	}

	failed := b.state == StateFailed
	if !failed {
		b.transition(StateStopping)
	}

	b.unsubscribeAll()

	var err error
	if release != nil {
		err = release()
	}

	if err != nil && !failed {
		b.lastErr = err
		b.transition(StateFailed)
		observability.LogAgentError(b.logger, b.name, "stop", err)
		return &pmerrors.LifecycleError{Agent: b.name, Transition: "stop", Err: err}
	}
	if !failed {
		b.transition(StateStopped)
		observability.LogAgentStop(b.logger, b.name)
	}
	return err
}

// track records a live subscription for teardown. Call only from within a
// start registration function.
func (b *Base) track(sub *event.Subscription) {
	b.subs = append(b.subs, sub)
}

// subscribe registers a typed handler under the agent's name and tracks it.
func (b *Base) subscribe(bus *event.Bus, t event.Type, h event.Handler, opts ...event.SubscribeOption) error {
	opts = append([]event.SubscribeOption{event.WithSubscriberName(b.name)}, opts...)
	sub, err := bus.Subscribe(t, h, opts...)
	if err != nil {
		return err
	}
	b.track(sub)
	return nil
}

// subscribeAll registers a wildcard handler under the agent's name and
// tracks it.
func (b *Base) subscribeAll(bus *event.Bus, h event.Handler, opts ...event.SubscribeOption) error {
	opts = append([]event.SubscribeOption{event.WithSubscriberName(b.name)}, opts...)
	sub, err := bus.SubscribeAll(h, opts...)
	if err != nil {
		return err
	}
	b.track(sub)
	return nil
}

// unsubscribeAll releases tracked subscriptions. Caller holds b.mu.
func (b *Base) unsubscribeAll() {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

// transition updates the state and records it. Caller holds b.mu.
func (b *Base) transition(to State) {
	b.state = to
	b.since = time.Now()
	if b.metrics != nil {
		b.metrics.RecordAgentTransition(context.Background(), b.name, to.String())
	}
}
