// Package ratelimit implements a token-bucket limiter keyed by caller.
//
// The covariance endpoint expands a single request into a dense
// symbols-squared computation, so the API throttles it per client IP.
// Buckets refill continuously and callers that stay idle long enough
// are forgotten.
package ratelimit

import (
	"sync"
	"time"
)

// idleEvict is how long a bucket may sit untouched before the sweeper drops it.
const idleEvict = 10 * time.Minute

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a set of per-key token buckets. Capacity and refill rate are
// supplied on each Allow call so one limiter can serve endpoints with
// different quotas.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), swept: time.Now()}
}

// Allow consumes one token from the bucket for key, creating the bucket at
// full capacity on first sight. It reports whether the caller may proceed.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > idleEvict {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: capacity - 1, last: now}
		return true
	}

	b.tokens += now.Sub(b.last).Seconds() * refillPerSec
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle past idleEvict. Caller holds the lock.
func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.last) > idleEvict {
			delete(l.buckets, k)
		}
	}
	l.swept = now
}
