package event

import (
	"context"
	"sync"
)

// MemoryDLQ is an in-memory DeadLetterQueue. Suitable for tests and
// single-instance deployments where records do not need to survive restarts.
type MemoryDLQ struct {
	mu      sync.RWMutex
	records []*DeadLetter
	maxSize int

	appended int64
	deleted  int64
}

// DefaultDLQMaxSize bounds the in-memory queue.
const DefaultDLQMaxSize = 10000

// NewMemoryDLQ creates an in-memory dead letter queue.
// maxSize <= 0 uses DefaultDLQMaxSize.
func NewMemoryDLQ(maxSize int) *MemoryDLQ {
	if maxSize <= 0 {
		maxSize = DefaultDLQMaxSize
	}
	return &MemoryDLQ{maxSize: maxSize}
}

// Append implements DeadLetterQueue.
func (q *MemoryDLQ) Append(_ context.Context, dl *DeadLetter) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) >= q.maxSize {
		return &EventError{EventID: dl.EventID, Message: "dead letter queue is full"}
	}

	q.records = append(q.records, dl)
	q.appended++
	return nil
}

// List implements DeadLetterQueue. Records are returned oldest first.
func (q *MemoryDLQ) List(_ context.Context, limit int) ([]*DeadLetter, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if limit <= 0 || limit > len(q.records) {
		limit = len(q.records)
	}
	out := make([]*DeadLetter, limit)
	copy(out, q.records[:limit])
	return out, nil
}

// Count implements DeadLetterQueue.
func (q *MemoryDLQ) Count(_ context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.records), nil
}

// CountByType implements DeadLetterQueue.
func (q *MemoryDLQ) CountByType(_ context.Context) (map[Type]int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	counts := make(map[Type]int)
	for _, dl := range q.records {
		counts[dl.EventType]++
	}
	return counts, nil
}

// Delete implements DeadLetterQueue. Removing a record is an operator
// action, taken after review.
func (q *MemoryDLQ) Delete(_ context.Context, eventID, handler string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, dl := range q.records {
		if dl.EventID == eventID && dl.Handler == handler {
			q.records = append(q.records[:i], q.records[i+1:]...)
			q.deleted++
			return nil
		}
	}
	return &EventError{EventID: eventID, Handler: handler, Message: "dead letter not found"}
}

// Stats returns queue statistics.
func (q *MemoryDLQ) Stats() DLQStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return DLQStats{
		Size:     len(q.records),
		Appended: q.appended,
		Deleted:  q.deleted,
	}
}

// DLQStats provides statistics about a dead letter queue.
type DLQStats struct {
	Size     int   // current queue size
	Appended int64 // total records appended
	Deleted  int64 // total records deleted by operators
}
