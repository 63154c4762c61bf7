package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
	"github.com/driftwatch/predmaint/pkg/predmaint/observability"
	"go.opentelemetry.io/otel/trace"
)

// BusConfig configures bus behavior.
type BusConfig struct {
	// Retry is the default per-handler retry policy. Zero value means
	// pmerrors.DefaultRetry. Overridable per subscription.
	Retry pmerrors.RetryConfig

	// HandlerTimeout bounds each handler attempt.
	// Default: 0 (unbounded). Overridable per subscription.
	HandlerTimeout time.Duration

	// GracePeriod is how long Stop waits for in-flight deliveries to drain.
	// Default: 5 seconds.
	GracePeriod time.Duration

	// DLQ captures deliveries that exhaust their retry budget.
	// Nil disables dead-lettering: exhausted deliveries are dropped with a
	// logged warning.
	DLQ DeadLetterQueue

	// Registry for payload validation (optional).
	Registry *Registry

	// ValidateEvents enables registry validation before dispatch.
	ValidateEvents bool

	// Logger receives structured delivery logs. Nil disables logging.
	Logger *slog.Logger

	// Metrics records bus metrics. Nil disables metrics.
	Metrics observability.MetricsRecorder

	// Spans traces publishes and handler deliveries. Nil disables tracing.
	Spans observability.SpanManager
}

// DefaultGracePeriod is the drain window Stop allows when none is configured.
const DefaultGracePeriod = 5 * time.Second

// Outcome summarizes all handler deliveries for one published event.
type Outcome struct {
	// Succeeded counts handlers that completed without a final error.
	Succeeded int

	// Retried counts handlers that needed more than one attempt,
	// whatever the final result.
	Retried int

	// DeadLettered counts handlers that exhausted retries into the DLQ.
	DeadLettered int

	// Dropped counts exhausted handlers discarded because no DLQ is
	// configured.
	Dropped int

	// Skipped counts handlers unsubscribed between publish and delivery.
	Skipped int
}

// PublishResult is an awaitable summary of one event's fan-out. Callers that
// do not need the outcome may discard it (fire-and-forget).
type PublishResult struct {
	mu      sync.Mutex
	outcome Outcome
	pending int
	done    chan struct{}
}

func newPublishResult(pending int) *PublishResult {
	r := &PublishResult{pending: pending, done: make(chan struct{})}
	if pending == 0 {
		close(r.done)
	}
	return r
}

// Done returns a channel closed once every handler delivery has completed.
func (r *PublishResult) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until all handler deliveries complete or ctx expires.
func (r *PublishResult) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return r.Outcome(), ctx.Err()
	}
}

// Outcome returns a snapshot of the summary so far.
func (r *PublishResult) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

func (r *PublishResult) record(update func(*Outcome)) {
	r.mu.Lock()
	update(&r.outcome)
	r.pending--
	finished := r.pending == 0
	r.mu.Unlock()
	if finished {
		close(r.done)
	}
}

// Bus is the in-process publish/subscribe router. Every subscription gets
// its own delivery lane: a handler sees events of its type in publish order,
// while sibling handlers run independently, so one handler's failures, retry
// schedule, or latency never delay another.
type Bus struct {
	cfg BusConfig

	mu        sync.RWMutex
	subs      map[Type][]*Subscription
	wildcards []*Subscription
	lanes     map[int64]*lane
	running   bool

	closeCh    chan struct{}
	deliverCtx context.Context
	cancel     context.CancelFunc

	wg        sync.WaitGroup
	nextSubID atomic.Int64
}

// NewBus creates a bus. The bus must be started before it accepts publishes.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = pmerrors.DefaultRetry
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Bus{
		cfg:   cfg,
		subs:  make(map[Type][]*Subscription),
		lanes: make(map[int64]*lane),
	}
}

// Subscription is the handle returned by Subscribe. Unsubscribing is safe
// during active delivery to other handlers of the same type.
type Subscription struct {
	id        int64
	eventType Type // empty for wildcard subscriptions
	wildcard  bool
	name      string
	handler   Handler
	retry     pmerrors.RetryConfig
	timeout   time.Duration
	bus       *Bus
	removed   atomic.Bool
}

// Name returns the handler identity used in logs and dead letter records.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes the registration. No-op if already removed.
// In-flight deliveries to this handler are not interrupted.
func (s *Subscription) Unsubscribe() {
	if !s.removed.CompareAndSwap(false, true) {
		return
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.wildcard {
		s.bus.wildcards = removeSub(s.bus.wildcards, s.id)
		return
	}
	s.bus.subs[s.eventType] = removeSub(s.bus.subs[s.eventType], s.id)
}

func removeSub(subs []*Subscription, id int64) []*Subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithSubscriberName sets the handler identity used in logs and dead letter
// records. Default: the handler's Go type name.
func WithSubscriberName(name string) SubscribeOption {
	return func(s *Subscription) {
		s.name = name
	}
}

// WithSubscriberRetry overrides the bus retry policy for this handler.
func WithSubscriberRetry(cfg pmerrors.RetryConfig) SubscribeOption {
	return func(s *Subscription) {
		s.retry = cfg
	}
}

// WithSubscriberTimeout overrides the per-attempt timeout for this handler.
func WithSubscriberTimeout(d time.Duration) SubscribeOption {
	return func(s *Subscription) {
		s.timeout = d
	}
}

// Subscribe registers a handler for an event type. Multiple independent
// handlers per type are allowed; registration order is the delivery order.
func (b *Bus) Subscribe(eventType Type, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	return b.subscribe(eventType, false, handler, opts)
}

// SubscribeAll registers a handler for every event type. A wildcard handler
// observes all events in publish order, so passive observers (audit trails,
// milestone recorders) see a parent event before any follow-on derived from
// it.
func (b *Bus) SubscribeAll(handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	return b.subscribe("", true, handler, opts)
}

func (b *Bus) subscribe(eventType Type, wildcard bool, handler Handler, opts []SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, &pmerrors.ConfigError{Op: "bus.subscribe", Message: "nil handler"}
	}
	if !wildcard && eventType == "" {
		return nil, &pmerrors.ConfigError{Op: "bus.subscribe", Message: "empty event type"}
	}

	sub := &Subscription{
		id:        b.nextSubID.Add(1),
		eventType: eventType,
		wildcard:  wildcard,
		name:      fmt.Sprintf("%T", handler),
		handler:   handler,
		retry:     b.cfg.Retry,
		timeout:   b.cfg.HandlerTimeout,
		bus:       b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if wildcard {
		b.wildcards = append(b.wildcards, sub)
	} else {
		b.subs[eventType] = append(b.subs[eventType], sub)
	}
	return sub, nil
}

// Start makes the bus accept publishes. Idempotent while running.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.closeCh = make(chan struct{})
	b.deliverCtx, b.cancel = context.WithCancel(context.Background())
	b.lanes = make(map[int64]*lane)
	b.running = true
	return nil
}

// Stop rejects further publishes and drains in-flight deliveries, bounded by
// the grace period (and ctx). Deliveries still pending when the window
// expires are cancelled and logged as abandoned.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.closeCh)
	cancel := b.cancel
	b.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(drained)
	}()

	grace := time.NewTimer(b.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-drained:
		cancel()
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	// Grace window over: cancel delivery contexts so retry loops unwind.
	cancel()
	observability.LogAbandoned(b.cfg.Logger, b.pendingDeliveries(), b.cfg.GracePeriod)
	<-drained
	return &pmerrors.TimeoutError{Op: "bus.stop drain", Timeout: b.cfg.GracePeriod}
}

func (b *Bus) pendingDeliveries() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, l := range b.lanes {
		n += l.depth()
	}
	return n
}

// Publish routes an event to every handler registered for its type, plus
// wildcard handlers. Handler failures never propagate to the caller: they
// are retried and, on exhaustion, dead-lettered. The returned PublishResult
// may be awaited or discarded.
//
// Publishing on a stopped bus is a configuration error.
func (b *Bus) Publish(ctx context.Context, evt Envelope) (res *PublishResult, err error) {
	if b.cfg.ValidateEvents && b.cfg.Registry != nil {
		if err := b.cfg.Registry.Validate(evt); err != nil {
			return nil, &EventError{EventID: evt.ID(), Message: "event validation failed", Err: err}
		}
	}

	var span trace.Span
	spanCtx := ctx
	if b.cfg.Spans != nil {
		spanCtx, span = b.cfg.Spans.StartPublishSpan(ctx, string(evt.Type()), evt.ID(), evt.CorrelationID())
		defer func() { b.cfg.Spans.EndSpanWithError(span, err) }()
	}

	// The snapshot and the enqueue happen under one lock acquisition so a
	// concurrent Stop either rejects this publish or waits for its delivery.
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil, &pmerrors.ConfigError{Op: "bus.publish", Message: "bus is stopped"}
	}

	// Handlers registered before publication are guaranteed delivery; later
	// Subscribe/Unsubscribe calls do not affect this event.
	targets := make([]*Subscription, 0, len(b.subs[evt.Type()])+len(b.wildcards))
	targets = append(targets, b.wildcards...)
	targets = append(targets, b.subs[evt.Type()]...)

	res = newPublishResult(len(targets))
	if len(targets) == 0 {
		b.mu.Unlock()
		observability.LogPublish(b.cfg.Logger, string(evt.Type()), evt.ID(), evt.CorrelationID(), 0)
		return res, nil
	}

	// One delivery fans out to each target's own lane. All pushes happen
	// under b.mu, so every lane sees events in the same global publish
	// order.
	d := &delivery{evt: evt, res: res, traceCtx: spanCtx}
	b.wg.Add(len(targets))
	for _, sub := range targets {
		b.laneLocked(sub).push(d)
	}
	b.mu.Unlock()

	observability.LogPublish(b.cfg.Logger, string(evt.Type()), evt.ID(), evt.CorrelationID(), len(targets))
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordPublish(ctx, string(evt.Type()), len(targets))
	}
	return res, nil
}

// laneLocked returns the delivery lane for a subscription, creating it on
// first use. Caller must hold b.mu.
func (b *Bus) laneLocked(sub *Subscription) *lane {
	if ln, ok := b.lanes[sub.id]; ok {
		return ln
	}
	ln := &lane{
		sub:  sub,
		ctx:  b.deliverCtx,
		wake: make(chan struct{}, 1),
		bus:  b,
	}
	b.lanes[sub.id] = ln
	go ln.run(b.closeCh)
	return ln
}

// delivery carries one published event to a handler's lane. The same value
// is shared across all target lanes of a publish.
type delivery struct {
	evt      Envelope
	res      *PublishResult
	traceCtx context.Context // carries the publish span for handler span parenting
}

// lane is one subscription's delivery queue. Its handler sees events in
// publish order; its failures, retries, and latency stay inside the lane and
// never throttle sibling handlers or other types.
type lane struct {
	sub   *Subscription
	ctx   context.Context // delivery context for this epoch, cancelled on forced shutdown
	mu    sync.Mutex
	queue []*delivery
	wake  chan struct{}
	bus   *Bus
}

func (l *lane) push(d *delivery) {
	l.mu.Lock()
	l.queue = append(l.queue, d)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *lane) pop() *delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	d := l.queue[0]
	l.queue = l.queue[1:]
	return d
}

func (l *lane) depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *lane) run(closeCh <-chan struct{}) {
	for {
		d := l.pop()
		if d == nil {
			select {
			case <-l.wake:
				continue
			case <-closeCh:
				// Drain what was accepted before the stop.
				for d := l.pop(); d != nil; d = l.pop() {
					l.bus.deliver(l.ctx, l.sub, d)
				}
				return
			}
		}
		l.bus.deliver(l.ctx, l.sub, d)
	}
}

// deliver runs one handler for one event, skipping handlers unsubscribed
// between publish and delivery.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, d *delivery) {
	defer b.wg.Done()

	if sub.removed.Load() {
		d.res.record(func(o *Outcome) { o.Skipped++ })
		return
	}
	b.invoke(ctx, d, sub)
}

// invoke runs one handler for one event with retry, timeout, and panic
// recovery. The same envelope is redelivered verbatim on every attempt.
func (b *Bus) invoke(ctx context.Context, d *delivery, sub *Subscription) {
	evt := d.evt
	start := time.Now()

	var span trace.Span
	if b.cfg.Spans != nil {
		if d.traceCtx != nil {
			ctx = trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(d.traceCtx))
		}
		ctx, span = b.cfg.Spans.StartHandlerSpan(ctx, sub.name)
	}

	attempt := 0
	result := pmerrors.WithRetryContext(ctx, sub.retry, func(ctx context.Context) ([]Envelope, error) {
		attempt++
		derived, err := b.attempt(ctx, sub, evt)
		if err != nil {
			observability.LogHandlerError(b.cfg.Logger, string(evt.Type()), evt.ID(), sub.name, attempt, err)
		}
		return derived, err
	})

	if b.cfg.Spans != nil {
		b.cfg.Spans.EndSpanWithError(span, result.Err)
	}
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordHandler(ctx, string(evt.Type()), sub.name,
			time.Since(start), result.Attempts, result.Err)
	}

	if result.Err != nil {
		b.exhausted(ctx, d, sub, result)
		return
	}

	d.res.record(func(o *Outcome) {
		o.Succeeded++
		if result.Attempts > 1 {
			o.Retried++
		}
	})

	// Follow-on events keep the chain going. Handlers build them with
	// NewFromParent so the correlation id carries forward.
	for _, derived := range result.Value {
		if _, err := b.Publish(ctx, derived); err != nil {
			observability.LogHandlerError(b.cfg.Logger, string(derived.Type()), derived.ID(), sub.name, attempt, err)
		}
	}
}

// exhausted finishes a delivery whose retry budget ran out.
func (b *Bus) exhausted(ctx context.Context, d *delivery, sub *Subscription, result pmerrors.Result[[]Envelope]) {
	evt := d.evt

	// Deliveries abandoned by shutdown cancellation are not handler
	// failures; they are dropped and logged, never dead-lettered.
	if ctx.Err() != nil {
		observability.LogDropped(b.cfg.Logger, string(evt.Type()), evt.ID(), sub.name, result.Attempts, result.Err)
		d.res.record(func(o *Outcome) { o.Dropped++ })
		return
	}

	if b.cfg.DLQ == nil {
		observability.LogDropped(b.cfg.Logger, string(evt.Type()), evt.ID(), sub.name, result.Attempts, result.Err)
		d.res.record(func(o *Outcome) {
			o.Dropped++
			if result.Attempts > 1 {
				o.Retried++
			}
		})
		return
	}

	dl := NewDeadLetter(evt, sub.name, result.Err, result.Attempts)
	if err := b.cfg.DLQ.Append(context.WithoutCancel(ctx), dl); err != nil {
		observability.LogHandlerError(b.cfg.Logger, string(evt.Type()), evt.ID(), "dlq", result.Attempts, err)
	}
	observability.LogDeadLetter(b.cfg.Logger, string(evt.Type()), evt.ID(), evt.CorrelationID(), sub.name, result.Attempts, result.Err)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordDeadLetter(ctx, string(evt.Type()), sub.name)
	}

	d.res.record(func(o *Outcome) {
		o.DeadLettered++
		if result.Attempts > 1 {
			o.Retried++
		}
	})
}

// attempt runs a single handler attempt bounded by the subscription timeout.
// A handler that outlives its deadline is treated as failed; its goroutine
// is left to finish and its late result discarded.
func (b *Bus) attempt(ctx context.Context, sub *Subscription, evt Envelope) ([]Envelope, error) {
	if sub.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sub.timeout)
		defer cancel()
	}

	type attemptResult struct {
		derived []Envelope
		err     error
	}
	ch := make(chan attemptResult, 1)

	go func() {
		derived, err := func() (d []Envelope, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &EventError{
						EventID: evt.ID(),
						Handler: sub.name,
						Message: fmt.Sprintf("handler panic: %v", r),
					}
				}
			}()
			return sub.handler.Handle(ctx, evt)
		}()
		ch <- attemptResult{derived, err}
	}()

	select {
	case r := <-ch:
		return r.derived, r.err
	case <-ctx.Done():
		if sub.timeout > 0 && ctx.Err() == context.DeadlineExceeded {
			return nil, &pmerrors.TimeoutError{Op: "handler " + sub.name, Timeout: sub.timeout}
		}
		return nil, ctx.Err()
	}
}
