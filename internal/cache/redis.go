package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "records:"

// Redis is a Store backed by a shared Redis instance, so the skip cache
// survives process restarts and is shared between workers. Expiry is
// delegated to Redis TTLs.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	fingerprint, deliveredAt, err := decodeValue(val)
	if err != nil {
		// A corrupt entry behaves like a miss; the next Put repairs it.
		return Entry{}, false, nil
	}
	return Entry{Key: key, Fingerprint: fingerprint, DeliveredAt: deliveredAt}, true, nil
}

func (r *Redis) Put(ctx context.Context, key, fingerprint string, ttl time.Duration) error {
	val := encodeValue(fingerprint, time.Now())
	if err := r.client.Set(ctx, keyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	return nil
}

func encodeValue(fingerprint string, deliveredAt time.Time) string {
	return fingerprint + "|" + strconv.FormatInt(deliveredAt.Unix(), 10)
}

func decodeValue(val string) (string, time.Time, error) {
	fingerprint, ts, ok := strings.Cut(val, "|")
	if !ok {
		return "", time.Time{}, fmt.Errorf("malformed cache value")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, err
	}
	return fingerprint, time.Unix(unix, 0), nil
}
