package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/driftwatch/predmaint/pkg/predmaint/event"
)

// Notification is a rendered message handed to a Notifier.
type Notification struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

// Notifier delivers notifications over an external channel. Implementations
// wrap email, chat, or paging transports.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// MemoryNotifier records notifications instead of sending them. It stands in
// for a real transport in simulations and tests.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (m *MemoryNotifier) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (m *MemoryNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// NotificationAgent fans scheduled work orders and open decisions out to an
// external channel via a Notifier, then records the send as a
// NotificationSent event.
type NotificationAgent struct {
	Base
	notifier Notifier

	// Channel and Recipient name the delivery target. A real deployment
	// would route per subscriber preferences.
	Channel   string
	Recipient string
}

// NewNotificationAgent creates the notification agent. A nil notifier falls
// back to MemoryNotifier.
func NewNotificationAgent(n Notifier) *NotificationAgent {
	if n == nil {
		n = &MemoryNotifier{}
	}
	return &NotificationAgent{
		Base:      NewBase("notification", "deliver operator notifications"),
		notifier:  n,
		Channel:   "chat",
		Recipient: "maintenance-team",
	}
}

// Start implements Agent.
func (a *NotificationAgent) Start(_ context.Context, bus *event.Bus) error {
	return a.start(func() error {
		if err := a.subscribe(bus, event.TypeMaintenanceScheduled, event.HandlerFunc(a.handleScheduled)); err != nil {
			return err
		}
		return a.subscribe(bus, event.TypeDecisionRequested, event.HandlerFunc(a.handleDecisionRequested))
	})
}

// Stop implements Agent.
func (a *NotificationAgent) Stop(context.Context) error {
	return a.stop(nil)
}

func (a *NotificationAgent) handleScheduled(ctx context.Context, evt event.Envelope) ([]event.Envelope, error) {
	sched := evt.Payload().(event.MaintenanceScheduled)
	subject := fmt.Sprintf("maintenance %s scheduled for %s", sched.WorkOrderID, sched.Component)
	body := fmt.Sprintf("%s assigned, window %s to %s",
		sched.Technician,
		sched.WindowStart.Format("2006-01-02 15:04"),
		sched.WindowEnd.Format("2006-01-02 15:04"))
	return a.send(ctx, evt, subject, body)
}

func (a *NotificationAgent) handleDecisionRequested(ctx context.Context, evt event.Envelope) ([]event.Envelope, error) {
	req := evt.Payload().(event.DecisionRequested)
	subject := fmt.Sprintf("decision %s needs a verdict", req.DecisionID)
	return a.send(ctx, evt, subject, req.Reason)
}

func (a *NotificationAgent) send(ctx context.Context, evt event.Envelope, subject, body string) ([]event.Envelope, error) {
	err := a.notifier.Notify(ctx, Notification{
		Channel:   a.Channel,
		Recipient: a.Recipient,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	return []event.Envelope{
		event.NewFromParent(evt, event.NotificationSent{
			Channel:   a.Channel,
			Recipient: a.Recipient,
			Subject:   subject,
		}),
	}, nil
}
