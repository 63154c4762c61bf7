package guard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/predmaint/pkg/predmaint/guard"
)

func TestMemoryGuardCheckAndSet(t *testing.T) {
	g := guard.NewMemoryGuard(time.Minute)
	defer g.Close()

	ctx := context.Background()

	seen, err := g.CheckAndSet(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, seen, "first use of a key must not be seen")

	seen, err = g.CheckAndSet(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, seen, "second use of a key must be seen")

	seen, err = g.CheckAndSet(ctx, "key-2")
	require.NoError(t, err)
	assert.False(t, seen, "distinct keys are independent")
}

func TestMemoryGuardTTLExpiry(t *testing.T) {
	g := guard.NewMemoryGuard(30 * time.Millisecond)
	defer g.Close()

	ctx := context.Background()

	seen, _ := g.CheckAndSet(ctx, "key-1")
	require.False(t, seen)

	time.Sleep(60 * time.Millisecond)

	seen, err := g.CheckAndSet(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, seen, "expired key must be accepted again")
}

func TestMemoryGuardCloseTwice(t *testing.T) {
	g := guard.NewMemoryGuard(time.Minute)
	g.Close()
	g.Close()
}

type failingGuard struct{}

func (failingGuard) CheckAndSet(context.Context, string) (bool, error) {
	return false, errors.New("cache unreachable")
}

type seenGuard struct{}

func (seenGuard) CheckAndSet(context.Context, string) (bool, error) {
	return true, nil
}

func TestFailOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tests := []struct {
		name     string
		guard    guard.Guard
		wantSeen bool
	}{
		{"nil guard accepts", nil, false},
		{"failing guard degrades to accept", failingGuard{}, false},
		{"healthy guard verdict passes through", seenGuard{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := guard.FailOpen{Guard: tt.guard, Logger: logger}
			seen, err := f.CheckAndSet(ctx, "key")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeen, seen)
		})
	}
}
