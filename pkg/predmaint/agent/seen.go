package agent

// defaultSeenCapacity bounds per-agent event-id dedupe memory.
const defaultSeenCapacity = 4096

// seenSet remembers recently observed event ids up to a fixed capacity,
// evicting the oldest once full. Agents use it to make redelivery under
// at-least-once semantics a no-op without holding every id forever.
//
// Not safe for concurrent use; callers hold their own lock.
type seenSet struct {
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	return &seenSet{
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

// observe reports whether id was already present, recording it if not.
func (s *seenSet) observe(id string) bool {
	if _, dup := s.ids[id]; dup {
		return true
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
	return false
}

func (s *seenSet) reset() {
	clear(s.ids)
	clear(s.order)
	s.next = 0
}
