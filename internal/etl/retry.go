package etl

import (
	"context"
	"math/rand"
	"time"
)

// BackoffPolicy bounds a retry sequence: how many attempts, the first
// delay, and the delay ceiling. Delays double each attempt and carry
// jitter so concurrent runs do not hammer a recovering backend in step.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff mirrors the retry settings of the source scrapers:
// five attempts starting at five seconds.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 5,
	BaseDelay:   5 * time.Second,
	MaxDelay:    2 * time.Minute,
}

// Start begins a retry sequence under this policy.
func (p BackoffPolicy) Start() *Backoff {
	return &Backoff{policy: p}
}

// Backoff is the explicit retry state machine: each Next call consumes
// one attempt and yields the delay before it. Exhaustion is an observable
// terminal state, not an exception path.
type Backoff struct {
	policy  BackoffPolicy
	attempt int
}

// Attempt reports how many attempts have been consumed so far.
func (b *Backoff) Attempt() int { return b.attempt }

// Next returns the delay to sleep before the upcoming attempt and whether
// an attempt remains. The first attempt has no delay.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.policy.MaxAttempts {
		return 0, false
	}
	b.attempt++
	if b.attempt == 1 {
		return 0, true
	}

	delay := b.policy.BaseDelay << (b.attempt - 2)
	if b.policy.MaxDelay > 0 && delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}
	// Jitter: keep at least half the delay, randomize the rest.
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1)), true
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
