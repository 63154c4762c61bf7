package agent

import (
	"context"
	"math"
	"sync"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// LearningAgent watches the processed data stream for model drift. It fixes
// a baseline from the first full window of readings, then compares each
// subsequent rolling window against it. When the rolling mean strays from
// the baseline by more than DriftThreshold (relative), it emits
// ModelDriftDetected and goes quiet for Cooldown readings so a sustained
// shift produces one signal, not a flood.
type LearningAgent struct {
	Base

	// Model names the model the drift signal concerns.
	Model string

	// WindowSize is the number of readings per window.
	WindowSize int

	// DriftThreshold is the relative deviation of the rolling mean from
	// the baseline mean that counts as drift.
	DriftThreshold float64

	// Cooldown is the number of readings to suppress after a drift signal.
	Cooldown int

	mu       sync.Mutex
	seen     *seenSet
	window   []float64
	baseline float64
	fixed    bool
	quiet    int
}

// NewLearningAgent creates the drift monitor with a window of 20 readings
// and a 15% drift threshold.
func NewLearningAgent(model string) *LearningAgent {
	return &LearningAgent{
		Base:           NewBase("learning", "monitor model drift"),
		Model:          model,
		WindowSize:     20,
		DriftThreshold: 0.15,
		Cooldown:       20,
		seen:           newSeenSet(0),
	}
}

// Start implements Agent.
func (a *LearningAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		return a.subscribe(bus, event.TypeDataProcessed, event.HandlerFunc(a.handle))
	})
}

// Stop implements Agent.
func (a *LearningAgent) Stop(context.Context) error {
	return a.stop(nil)
}

func (a *LearningAgent) handle(_ context.Context, evt event.Envelope) ([]event.Envelope, error) {
	processed := evt.Payload().(event.DataProcessed)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seen.observe(evt.ID()) {
		return nil, nil
	}

	a.window = append(a.window, processed.Value)
	if len(a.window) > a.WindowSize {
		a.window = a.window[len(a.window)-a.WindowSize:]
	}
	if len(a.window) < a.WindowSize {
		return nil, nil
	}

	observed := mean(a.window)
	if !a.fixed {
		a.baseline = observed
		a.fixed = true
		return nil, nil
	}

	if a.quiet > 0 {
		a.quiet--
		return nil, nil
	}

	deviation := math.Abs(observed - a.baseline)
	if a.baseline != 0 {
		deviation /= math.Abs(a.baseline)
	}
	if deviation <= a.DriftThreshold {
		return nil, nil
	}

	a.quiet = a.Cooldown
	return []event.Envelope{
		event.NewFromParent(evt, event.ModelDriftDetected{
			Model:    a.Model,
			Metric:   "rolling_mean",
			Baseline: a.baseline,
			Observed: observed,
		}),
	}, nil
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
