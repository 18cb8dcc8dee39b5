package etl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffConsumesBoundedAttempts(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
	b := policy.Start()

	delay, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), delay, "first attempt is immediate")

	delay, ok = b.Next()
	require.True(t, ok)
	assert.GreaterOrEqual(t, delay, 5*time.Millisecond)
	assert.LessOrEqual(t, delay, 10*time.Millisecond)

	delay, ok = b.Next()
	require.True(t, ok)
	assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
	assert.LessOrEqual(t, delay, 20*time.Millisecond)

	_, ok = b.Next()
	assert.False(t, ok, "attempts must be exhausted")
	assert.Equal(t, 3, b.Attempt())
}

func TestBackoffHonorsDelayCeiling(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	b := policy.Start()

	for {
		delay, ok := b.Next()
		if !ok {
			break
		}
		assert.LessOrEqual(t, delay, 2*time.Second)
	}
}

func TestSleepAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepReturnsAfterDelay(t *testing.T) {
	start := time.Now()
	err := Sleep(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
