// Package guard provides the keyed de-duplication check consulted by
// ingestion-facing agents before accepting a unit of work.
//
// The guard keys on request-level idempotency keys (distinct from event ids
// and correlation ids) so client retries under at-least-once delivery do not
// produce duplicate publishes. The guard is advisory: agents wrap it with
// FailOpen so an unavailable guard degrades to "always accept" rather than
// failing closed.
package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Guard is a keyed de-duplication check.
type Guard interface {
	// CheckAndSet records the key and reports whether it was already seen.
	CheckAndSet(ctx context.Context, key string) (alreadySeen bool, err error)
}

// MemoryGuard is an in-process Guard with per-key TTL expiry, for tests and
// single-instance deployments. Production deployments point ingestion agents
// at an external cache implementing Guard.
type MemoryGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

// DefaultGuardTTL is the retention window for seen keys.
const DefaultGuardTTL = 10 * time.Minute

// NewMemoryGuard creates an in-memory guard. ttl <= 0 uses DefaultGuardTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	g := &MemoryGuard{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go g.janitor()
	return g
}

// CheckAndSet implements Guard.
func (g *MemoryGuard) CheckAndSet(_ context.Context, key string) (bool, error) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.seen[key]; ok && now.Sub(at) < g.ttl {
		return true, nil
	}
	g.seen[key] = now
	return false, nil
}

// Close stops the expiry janitor.
func (g *MemoryGuard) Close() {
	g.once.Do(func() { close(g.stopCh) })
}

func (g *MemoryGuard) janitor() {
	ticker := time.NewTicker(g.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-g.ttl)
			g.mu.Lock()
			for key, at := range g.seen {
				if at.Before(cutoff) {
					delete(g.seen, key)
				}
			}
			g.mu.Unlock()
		case <-g.stopCh:
			return
		}
	}
}

// FailOpen wraps a Guard so errors degrade to "not seen". A broken
// de-duplication cache must never block ingestion; the worst case is a
// duplicate publish, which downstream idempotent handlers tolerate.
type FailOpen struct {
	Guard  Guard
	Logger *slog.Logger
}

// CheckAndSet implements Guard.
func (f FailOpen) CheckAndSet(ctx context.Context, key string) (bool, error) {
	if f.Guard == nil {
		return false, nil
	}
	seen, err := f.Guard.CheckAndSet(ctx, key)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("idempotency guard unavailable, accepting work",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false, nil
	}
	return seen, nil
}
