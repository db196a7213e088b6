// Package ratelimit provides a per-key token bucket limiter whose idle keys
// are evicted in the background.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL = 10 * time.Minute
	sweepDivisor   = 2
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func (e *entry) touch(now time.Time) {
	e.lastSeen.Store(now.UnixNano())
}

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter.
type KeyedRateLimiter struct {
	limiters *xsync.Map[string, *entry]
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a keyed rate limiter allowing rps requests per second per key
// with the given burst. Keys unused for ten minutes are dropped.
func New(rps float64, burst int) *KeyedRateLimiter {
	return NewWithTTL(rps, burst, defaultIdleTTL)
}

// NewWithTTL is New with an explicit idle eviction window.
func NewWithTTL(rps float64, burst int, idleTTL time.Duration) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: xsync.NewMap[string, *entry](),
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	go krl.sweepLoop()

	return krl
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.get(key).Allow()
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	return krl.limiters.Size()
}

func (krl *KeyedRateLimiter) get(key string) *rate.Limiter {
	e, _ := krl.limiters.LoadOrCompute(key, func() (*entry, bool) {
		return &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}, false
	})
	e.touch(krl.now())
	return e.limiter
}

// Stop shuts down the eviction goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) sweepLoop() {
	ticker := time.NewTicker(krl.idleTTL / sweepDivisor)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.sweep()
		}
	}
}

// sweep drops keys idle for longer than the TTL.
func (krl *KeyedRateLimiter) sweep() {
	cutoff := krl.now().Add(-krl.idleTTL).UnixNano()
	krl.limiters.Range(func(key string, e *entry) bool {
		if e.lastSeen.Load() < cutoff {
			krl.limiters.Delete(key)
		}
		return true
	})
}
