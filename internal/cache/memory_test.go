package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetMissingKey(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get(context.Background(), "ahorramas:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPutThenGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-1", time.Hour))

	entry, ok, err := m.Get(ctx, "ahorramas:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ahorramas:1", entry.Key)
	assert.Equal(t, "fp-1", entry.Fingerprint)
	assert.False(t, entry.DeliveredAt.IsZero())
}

func TestMemoryExpiredEntryBehavesLikeMissing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-1", time.Minute))

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, err := m.Get(ctx, "ahorramas:1")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries force re-delivery")
}

func TestMemoryPutOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-old", time.Hour))
	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-new", time.Hour))

	entry, ok, err := m.Get(ctx, "ahorramas:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fp-new", entry.Fingerprint)
}

func TestMemoryInvalidate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-1", time.Hour))
	require.NoError(t, m.Invalidate(ctx, "ahorramas:1"))

	_, ok, err := m.Get(ctx, "ahorramas:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Put(ctx, "ahorramas:1", "fp-1", 0))

	m.now = func() time.Time { return now.Add(1000 * time.Hour) }
	_, ok, err := m.Get(ctx, "ahorramas:1")
	require.NoError(t, err)
	assert.True(t, ok)
}
