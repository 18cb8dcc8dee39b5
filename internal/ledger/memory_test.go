package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCreateRejectsSecondInProgressRun(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)

	_, err = m.Create(ctx, "run-2", "ahorramas")
	assert.ErrorIs(t, err, ErrConflict)

	// A different source is unaffected.
	_, err = m.Create(ctx, "run-3", "carrefour")
	assert.NoError(t, err)
}

func TestMemoryCreateAllowedAfterRunFinishes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, "run-1"))

	_, err = m.Create(ctx, "run-2", "ahorramas")
	assert.NoError(t, err)
}

func TestMemoryAdvanceUpdatesCursorAndCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)

	require.NoError(t, m.Advance(ctx, "run-1", "24", 24))
	require.NoError(t, m.Advance(ctx, "run-1", "48", 20))

	cp, ok, err := m.Latest(ctx, "ahorramas")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "48", cp.Cursor)
	assert.Equal(t, 44, cp.Processed)
	assert.Equal(t, StatusInProgress, cp.Status)
}

func TestMemoryAdvanceIsAtomicUnderConcurrentReaders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			_ = m.Advance(ctx, "run-1", "cursor", 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			cp, ok, err := m.Latest(ctx, "ahorramas")
			require.NoError(t, err)
			require.True(t, ok)
			// A reader never sees a cursor without its matching count.
			if cp.Processed > 0 {
				assert.Equal(t, "cursor", cp.Cursor)
			}
		}
	}()
	wg.Wait()
}

func TestMemoryFailIsTerminal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, "run-1", "source unreachable"))

	assert.ErrorIs(t, m.Advance(ctx, "run-1", "1", 1), ErrNotFound)
	assert.ErrorIs(t, m.Complete(ctx, "run-1"), ErrNotFound)

	cp, ok, err := m.Latest(ctx, "ahorramas")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, cp.Status)
	assert.Equal(t, "source unreachable", cp.Reason)
}

func TestMemoryLatestReturnsNewestRegardlessOfStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "run-1", "ahorramas")
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, "run-1", "boom"))

	_, err = m.Create(ctx, "run-2", "ahorramas")
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, "run-2"))

	cp, ok, err := m.Latest(ctx, "ahorramas")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", cp.RunID)
	assert.Equal(t, StatusCompleted, cp.Status)
}

func TestMemoryLatestAbsentForUnknownSource(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Latest(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
