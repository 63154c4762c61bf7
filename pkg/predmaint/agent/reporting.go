package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// ReportingAgent keeps running counts of pipeline activity and periodically
// emits a ReportGenerated summary. It observes the whole bus through one
// wildcard subscription, so a report cut on a tick boundary counts exactly
// the events published before that tick. Counts are de-duplicated by event
// id, so redeliveries under at-least-once semantics do not skew them.
type ReportingAgent struct {
	Base

	// ReportEvery is the number of simulation ticks between reports.
	ReportEvery int

	mu          sync.Mutex
	seen        *seenSet
	eventCount  int
	anomalies   int
	periodStart time.Time
}

// NewReportingAgent creates the reporting agent, emitting one report every
// ten ticks by default.
func NewReportingAgent() *ReportingAgent {
	return &ReportingAgent{
		Base:        NewBase("reporting", "summarize pipeline activity"),
		ReportEvery: 10,
		seen:        newSeenSet(0),
		periodStart: time.Now(),
	}
}

// Start implements Agent.
func (a *ReportingAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribeAll(bus, event.HandlerFunc(a.handle))
	})
}

// Stop implements Agent.
func (a *ReportingAgent) Stop(context.Context) error {
	return a.stop(nil)
}

// Counts returns the total and anomaly counts for the current period.
func (a *ReportingAgent) Counts() (events, anomalies int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eventCount, a.anomalies
}

func (a *ReportingAgent) handle(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seen.observe(evt.ID()) {
		return nil, nil
	}

	a.eventCount++
	if evt.Type() == event.TypeAnomalyDetected {
		a.anomalies++
	}

	tick, isTick := evt.Payload().(event.SimulationTick)
	if !isTick || a.ReportEvery <= 0 || tick.Seq == 0 || tick.Seq%a.ReportEvery != 0 {
		return nil, nil
	}

	report := event.ReportGenerated{
		ReportID:     "rep-" + evt.ID(),
		Period:       fmt.Sprintf("%s to %s", a.periodStart.Format(time.RFC3339), time.Now().Format(time.RFC3339)),
		EventCount:   a.eventCount,
		AnomalyCount: a.anomalies,
	}
	a.eventCount = 0
	a.anomalies = 0
	a.seen.reset()
	// Remember the boundary tick across the reset so a redelivery of it
	// cannot cut a second report.
	a.seen.observe(evt.ID())
	a.periodStart = time.Now()

	return []event.Envelope{event.NewFromParent(evt, report)}, nil
}
