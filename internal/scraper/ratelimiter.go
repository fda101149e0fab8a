package scraper

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// refillWindow is how long an empty bucket takes to fill completely.
const refillWindow = 15 * time.Second

// RateLimiter is a token bucket with a random politeness delay after each
// token, so a crawl never hammers a host in lockstep.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	minDelay   time.Duration
	maxDelay   time.Duration
}

// NewRateLimiter allows bursts of workers requests and refills the bucket
// over refillWindow.
func NewRateLimiter(workers int, minDelay, maxDelay time.Duration) *RateLimiter {
	if workers <= 0 {
		workers = 1
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		tokens:     float64(workers),
		maxTokens:  float64(workers),
		refillRate: float64(workers) / refillWindow.Seconds(),
		lastRefill: time.Now(),
		minDelay:   minDelay,
		maxDelay:   maxDelay,
	}
}

// Wait blocks until a token is available and the politeness delay passed.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return Sleep(ctx, rl.randomDelay())
		}
		wait := time.Duration((1 - rl.tokens) / rl.refillRate * float64(time.Second))
		rl.mu.Unlock()

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens = min(rl.maxTokens, rl.tokens+now.Sub(rl.lastRefill).Seconds()*rl.refillRate)
	rl.lastRefill = now
}

// randomDelay returns a uniform delay in [minDelay, maxDelay].
func (rl *RateLimiter) randomDelay() time.Duration {
	span := int64(rl.maxDelay - rl.minDelay)
	if span <= 0 {
		return rl.minDelay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return rl.minDelay
	}
	return rl.minDelay + time.Duration(n.Int64())
}
