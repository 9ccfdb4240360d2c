package service

import "time"

// NewTokenBucketWithClock exposes the clock-injected constructor to tests.
func NewTokenBucketWithClock(rate, capacity float64, now func() time.Time) *TokenBucket {
	return newTokenBucket(rate, capacity, now)
}

// Sweep removes buckets idle for longer than idle.
func (tb *TokenBucket) Sweep(idle time.Duration) { tb.sweep(idle) }

// Len returns the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}
