package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisValueCodecRoundTrip(t *testing.T) {
	deliveredAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	val := encodeValue("abc123", deliveredAt)
	fingerprint, ts, err := decodeValue(val)
	require.NoError(t, err)
	assert.Equal(t, "abc123", fingerprint)
	assert.True(t, ts.Equal(deliveredAt))
}

func TestRedisValueCodecRejectsGarbage(t *testing.T) {
	_, _, err := decodeValue("no-separator")
	assert.Error(t, err)

	_, _, err = decodeValue("fp|not-a-timestamp")
	assert.Error(t, err)
}
