package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token-bucket limiter per API key so a noisy
// collaborator cannot starve the others on the HTTP surface.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rps      rate.Limit
	burst    int
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var pool = &limiterPool{
	limiters: make(map[string]*entry),
	rps:      rate.Limit(50),
	burst:    100,
}

// ConfigureRateLimit sets the per-key limit. Existing limiters are
// replaced lazily as keys reappear.
func ConfigureRateLimit(rps float64, burst int) {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if rps > 0 {
		pool.rps = rate.Limit(rps)
	}
	if burst > 0 {
		pool.burst = burst
	}
	pool.limiters = make(map[string]*entry)
}

// Allow reports whether the key may make another request now.
func Allow(key string) bool {
	pool.mu.Lock()
	e, ok := pool.limiters[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(pool.rps, pool.burst)}
		pool.limiters[key] = e
	}
	e.lastSeen = time.Now()
	pool.mu.Unlock()
	return e.lim.Allow()
}

// SweepLimiters drops limiters idle longer than maxIdle and returns how
// many were removed. Run from the maintenance scheduler.
func SweepLimiters(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	pool.mu.Lock()
	defer pool.mu.Unlock()
	n := 0
	for k, e := range pool.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(pool.limiters, k)
			n++
		}
	}
	return n
}
