package agent

import (
	"context"
	"sync"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	EventID       string
	EventType     event.Type
	CorrelationID string
	OccurredAt    time.Time
	SeenAt        time.Time
}

// DefaultTrailLimit bounds the audit trail when no limit is set.
const DefaultTrailLimit = 4096

// AuditAgent observes every event on the bus and keeps an in-memory trail.
// Entries are de-duplicated by event id, so a redelivered event appears
// once. The trail is bounded; once full the oldest entry is evicted.
type AuditAgent struct {
	Base

	// TrailLimit caps the number of retained entries. Zero means
	// DefaultTrailLimit. Set before Start.
	TrailLimit int

	mu      sync.Mutex
	seen    *seenSet
	entries []AuditEntry
}

// NewAuditAgent creates the audit agent.
func NewAuditAgent() *AuditAgent {
	return &AuditAgent{
		Base: NewBase("audit", "record every event"),
	}
}

// Start implements Agent.
func (a *AuditAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribeAll(bus, event.HandlerFunc(a.record))
	})
}

// Stop implements Agent.
func (a *AuditAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// Trail returns a copy of the audit trail in observation order.
func (a *AuditAgent) Trail() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ByCorrelation returns the trail entries on a single causal chain, in
// observation order.
func (a *AuditAgent) ByCorrelation(correlationID string) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []AuditEntry
	for _, e := range a.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out
}

func (a *AuditAgent) record(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	limit := a.TrailLimit
	if limit <= 0 {
		limit = DefaultTrailLimit
	}
	if a.seen == nil {
		a.seen = newSeenSet(limit)
	}
	if a.seen.observe(evt.ID()) {
		return nil, nil
	}

	if len(a.entries) >= limit {
		a.entries = a.entries[1:]
	}
	a.entries = append(a.entries, AuditEntry{
		EventID:       evt.ID(),
		EventType:     evt.Type(),
		CorrelationID: evt.CorrelationID(),
		OccurredAt:    evt.OccurredAt(),
		SeenAt:        time.Now(),
	})
	return nil, nil
}
