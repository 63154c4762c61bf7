// Package agent defines the agent contract and the concrete agents that
// cooperate on the predmaint event stream.
//
// An agent encapsulates one business capability. It subscribes to the event
// types it cares about when started, processes deliveries, and may publish
// follow-on events. Agents never talk to each other directly; all
// coordination happens through the bus, and all lifecycle management happens
// through the coordinator.
//
// Handlers must tolerate at-least-once delivery: the bus redelivers the same
// envelope verbatim on retry, so agents either set absolute state or
// de-duplicate by event id.
package agent

import (
	"context"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// State is an agent's lifecycle state.
type State int32

const (
	// StateStopped is the initial and final state.
	StateStopped State = iota

	// StateStarting covers subscription registration.
	StateStarting

	// StateRunning means subscriptions are registered and live.
	StateRunning

	// StateStopping covers teardown.
	StateStopping

	// StateFailed is reached on an unrecoverable lifecycle error. Only a
	// fresh operator-triggered Start recovers a failed agent; agents do
	// not self-resurrect.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Health is a cheap, non-blocking snapshot of an agent's lifecycle state.
// It feeds the coordinator's aggregate view and never sits on the event
// processing path.
type Health struct {
	State     State     `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}

// Agent is the contract every predmaint agent implements. The coordinator
// holds a homogeneous collection of this interface and is the only caller
// of Start and Stop.
type Agent interface {
	// Name is the agent's stable identity, used in logs, health snapshots
	// and dead letter records.
	Name() string

	// Capabilities describes what the agent does, for registry metadata.
	Capabilities() []string

	// Start registers the agent's subscriptions on the bus. It is
	// idempotent and completes registration before returning, so
	// "started" implies "subscribed".
	Start(ctx context.Context, bus *event.Bus) error

	// Stop unsubscribes everything the agent registered and releases held
	// resources. It succeeds even if Start partially failed.
	Stop(ctx context.Context) error

	// Health reports the current lifecycle state.
	Health() Health
}
