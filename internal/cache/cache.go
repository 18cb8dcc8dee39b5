// Package cache stores the last delivered fingerprint per record so
// unchanged records can be skipped on later runs. The cache is an
// optimization only: losing it entirely causes redundant re-delivery,
// never incorrect delivery.
package cache

import (
	"context"
	"time"
)

// Entry is one cached fingerprint with the time the record was last
// confirmed delivered.
type Entry struct {
	Key         string
	Fingerprint string
	DeliveredAt time.Time
}

// Store is the key-value contract the pipeline needs. Get must treat an
// expired entry exactly like a missing one. Put overwrites, last write
// wins. Implementations must be safe for concurrent use across runs of
// different sources.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key, fingerprint string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
