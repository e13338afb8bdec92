package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/uvscan/pkg/logger"
)

func TestAcquire_ImmediateWhenTokensAvailable(t *testing.T) {
	l := New(5, 1, nil, logger.NewNop())

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background(), 1))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "a full bucket should not block")
}

func TestAcquire_TokensNeverExceedCapacity(t *testing.T) {
	l := New(3, 1000, nil, logger.NewNop())

	// Let refill run far past capacity
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, l.Tokens(), l.Capacity())
}

func TestAcquire_BlocksUntilRefill(t *testing.T) {
	// 2 tokens, 10/s refill: third acquire needs ~100ms
	l := New(2, 10, nil, logger.NewNop())

	require.NoError(t, l.Acquire(context.Background(), 1))
	require.NoError(t, l.Acquire(context.Background(), 1))

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), 1))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "empty bucket must block for refill")
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestAcquire_SixthCallWaitsAboutOneSecond(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test")
	}

	// Capacity 5, refill 1/s: five immediate acquires, the sixth
	// waits roughly one second.
	l := New(5, 1, nil, logger.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background(), 1))
	}

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), 1))
	elapsed := time.Since(start)

	assert.InDelta(t, 1.0, elapsed.Seconds(), 0.3)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := New(1, 0.1, nil, logger.NewNop())
	require.NoError(t, l.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_RequestExceedsCapacity(t *testing.T) {
	l := New(2, 1, nil, logger.NewNop())

	err := l.Acquire(context.Background(), 3)
	assert.Error(t, err, "asking for more than capacity can never succeed")
}

func TestNew_NonPositiveRateUsesFloor(t *testing.T) {
	l := New(2, 0, nil, logger.NewNop())
	require.NoError(t, l.Acquire(context.Background(), 1))
	require.NoError(t, l.Acquire(context.Background(), 1))

	// Floor rate is 0.1/s: tokens must still accumulate, just slowly
	time.Sleep(100 * time.Millisecond)
	assert.Greater(t, l.Tokens(), 0.0)
}

func TestNew_CapacityFloor(t *testing.T) {
	l := New(0, 1, nil, logger.NewNop())
	assert.Equal(t, 1.0, l.Capacity())
}
