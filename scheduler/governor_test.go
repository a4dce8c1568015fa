package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_Unlimited(t *testing.T) {
	g := NewGovernor(0, 10)
	assert.Zero(t, g.Limit())

	start := time.Now()
	require.NoError(t, g.WaitN(context.Background(), 1_000_000))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestGovernor_PacesGrants(t *testing.T) {
	// 1000 records/s with burst 100: 300 records need ~200ms beyond the
	// initial burst.
	g := NewGovernor(1000, 100)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.WaitN(context.Background(), 100))
	}
	elapsed := time.Since(start)

	assert.Greater(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 600*time.Millisecond)
}

func TestGovernor_GrantLargerThanBurst(t *testing.T) {
	g := NewGovernor(10000, 10)

	// 50 tokens with burst 10 must be split, not rejected.
	require.NoError(t, g.WaitN(context.Background(), 50))
}

func TestGovernor_CancelledContext(t *testing.T) {
	g := NewGovernor(1, 1)
	require.NoError(t, g.WaitN(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, g.WaitN(ctx, 1))
}

func TestGovernor_BurstStaysSmall(t *testing.T) {
	// a tenth of a second worth of records, at most one batch
	g := NewGovernor(1000, 10000)
	assert.Equal(t, float64(1000), g.Limit())
	assert.Equal(t, 100, g.limiter.Burst())

	g = NewGovernor(10, 1000)
	assert.Equal(t, 1, g.limiter.Burst())
}
