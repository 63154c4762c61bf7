package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetObserve(t *testing.T) {
	s := newSeenSet(4)

	assert.False(t, s.observe("a"))
	assert.True(t, s.observe("a"))
	assert.False(t, s.observe("b"))
	assert.True(t, s.observe("a"))
	assert.True(t, s.observe("b"))
}

func TestSeenSetEvictsOldest(t *testing.T) {
	s := newSeenSet(3)

	for _, id := range []string{"a", "b", "c"} {
		assert.False(t, s.observe(id))
	}

	// "d" pushes out "a", the oldest entry.
	assert.False(t, s.observe("d"))
	assert.False(t, s.observe("a"), "evicted id forgotten")
	assert.True(t, s.observe("d"))

	assert.Len(t, s.ids, 3)
}

func TestSeenSetStaysBounded(t *testing.T) {
	s := newSeenSet(8)

	for i := 0; i < 1000; i++ {
		assert.False(t, s.observe(fmt.Sprintf("evt-%d", i)))
	}
	assert.Len(t, s.ids, 8)
}

func TestSeenSetReset(t *testing.T) {
	s := newSeenSet(4)

	s.observe("a")
	s.observe("b")
	s.reset()

	assert.False(t, s.observe("a"))
	assert.False(t, s.observe("b"))
}

func TestSeenSetDefaultCapacity(t *testing.T) {
	s := newSeenSet(0)
	assert.Len(t, s.order, defaultSeenCapacity)
}
