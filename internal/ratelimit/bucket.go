// Package ratelimit throttles chat turns per key. Each key gets a token
// bucket for short bursts and, optionally, a rolling daily cap; the LLM
// limiter uses both, the per-user limiter only the bucket.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. Tokens refill continuously at refillRate per
// second up to capacity; each admitted request spends one.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	last       time.Time
	now        func() time.Time
}

// NewBucket returns a full bucket.
func NewBucket(capacity, refillRate float64) *Bucket {
	return newBucket(capacity, refillRate, time.Now)
}

func newBucket(capacity, refillRate float64, now func() time.Time) *Bucket {
	return &Bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		last:       now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (b *Bucket) refill() {
	t := b.now()
	if elapsed := t.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.last = t
}

// Allow spends a token if one is available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// peek reports whether Allow would succeed. Callers combining several
// limits hold their own lock across peek and take.
func (b *Bucket) peek() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens >= 1
}

func (b *Bucket) take() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
	}
}

// Available returns the current token count.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Full reports whether the bucket has refilled completely, i.e. its key
// has been idle long enough to forget.
func (b *Bucket) Full() bool {
	return b.Available() >= b.capacity
}
