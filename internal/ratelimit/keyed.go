package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
)

// Limiter names used as metric labels.
const (
	NameUser = "user"
	NameLLM  = "llm"
	NameAPI  = "api"
)

// KeyedConfig configures a Keyed limiter.
type KeyedConfig struct {
	// Name labels the limiter's metrics.
	Name string

	Burst        float64
	RefillPerSec float64

	// DailyLimit caps requests per rolling 24h; 0 disables it.
	DailyLimit int

	// SweepEvery is how often idle keys are forgotten. 0 disables sweeping.
	SweepEvery time.Duration

	Metrics *metrics.Metrics

	// now is overridden in tests.
	now func() time.Time
}

type keyedEntry struct {
	mu     sync.Mutex
	bucket *Bucket
	daily  *Window
}

// Keyed keeps one bucket (and optional daily window) per key: a LINE user
// id, a session id or a client IP.
type Keyed struct {
	cfg     KeyedConfig
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

// NewKeyed starts a limiter. Call Stop to end its sweeper.
func NewKeyed(cfg KeyedConfig) *Keyed {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	k := &Keyed{
		cfg:     cfg,
		entries: make(map[string]*keyedEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.SweepEvery > 0 {
		go k.sweepLoop()
	} else {
		close(k.done)
	}
	return k
}

// Allow admits one request for key, spending from both the bucket and the
// daily window. Nothing is spent when either would refuse. An empty key is
// always admitted.
func (k *Keyed) Allow(key string) bool {
	if key == "" {
		return true
	}
	e := k.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.daily.peek() || !e.bucket.peek() {
		k.cfg.Metrics.RecordRateLimiterDrop(k.cfg.Name)
		return false
	}
	e.daily.take()
	e.bucket.take()
	return true
}

func (k *Keyed) entry(key string) *keyedEntry {
	k.mu.RLock()
	e, ok := k.entries[key]
	k.mu.RUnlock()
	if ok {
		return e
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if e, ok = k.entries[key]; ok {
		return e
	}
	e = &keyedEntry{
		bucket: newBucket(k.cfg.Burst, k.cfg.RefillPerSec, k.cfg.now),
		daily:  newWindow(k.cfg.DailyLimit, 24*time.Hour, k.cfg.now),
	}
	k.entries[key] = e
	return e
}

// Available returns key's current tokens; an unseen key has a full bucket.
func (k *Keyed) Available(key string) float64 {
	k.mu.RLock()
	e, ok := k.entries[key]
	k.mu.RUnlock()
	if !ok {
		return k.cfg.Burst
	}
	return e.bucket.Available()
}

// DailyRemaining returns key's remaining daily quota, or -1 when the daily
// cap is disabled.
func (k *Keyed) DailyRemaining(key string) int {
	if k.cfg.DailyLimit <= 0 {
		return -1
	}
	k.mu.RLock()
	e, ok := k.entries[key]
	k.mu.RUnlock()
	if !ok {
		return k.cfg.DailyLimit
	}
	return e.daily.Remaining()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// Sweep forgets keys whose bucket is full and whose daily window is unused.
func (k *Keyed) Sweep() int {
	k.mu.Lock()
	for key, e := range k.entries {
		if e.bucket.Full() && (e.daily == nil || e.daily.Remaining() >= k.cfg.DailyLimit) {
			delete(k.entries, key)
		}
	}
	n := len(k.entries)
	k.mu.Unlock()

	k.cfg.Metrics.SetRateLimiterKeys(k.cfg.Name, n)
	return n
}

func (k *Keyed) sweepLoop() {
	defer close(k.done)
	ticker := time.NewTicker(k.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (k *Keyed) Stop() {
	k.once.Do(func() { close(k.stop) })
	<-k.done
}
