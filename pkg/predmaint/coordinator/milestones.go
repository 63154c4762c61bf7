package coordinator

import (
	"sync"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// Milestone is one observed event, recorded for operator inspection.
type Milestone struct {
	EventType     event.Type
	EventID       string
	CorrelationID string
	OccurredAt    time.Time
}

// MilestoneLog is a fixed-capacity ring of recent milestones. When full, the
// oldest entry is overwritten.
type MilestoneLog struct {
	mu    sync.Mutex
	ring  []Milestone
	next  int
	count int
}

// DefaultMilestoneCapacity bounds the log when no capacity is configured.
const DefaultMilestoneCapacity = 256

// NewMilestoneLog creates a log holding at most capacity entries.
func NewMilestoneLog(capacity int) *MilestoneLog {
	if capacity <= 0 {
		capacity = DefaultMilestoneCapacity
	}
	return &MilestoneLog{ring: make([]Milestone, capacity)}
}

// Record appends a milestone, overwriting the oldest when full.
func (l *MilestoneLog) Record(m Milestone) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = m
	l.next = (l.next + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}
}

// Snapshot returns the retained milestones, oldest first.
func (l *MilestoneLog) Snapshot() []Milestone {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Milestone, 0, l.count)
	start := l.next - l.count
	if start < 0 {
		start += len(l.ring)
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}

// Len returns the number of retained milestones.
func (l *MilestoneLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
