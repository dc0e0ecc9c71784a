// Package ratelimit implements the per-user message admission policy: a
// fixed number of accepted messages per rolling second and per rolling
// minute, checked and recorded atomically per user. Denial is a normal,
// frequent outcome, not an error.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// bucket is one wall-clock window: a counter plus the instant the window
// last reset.
type bucket struct {
	windowStart time.Time
	count       int
}

func (b *bucket) roll(now time.Time, width time.Duration) {
	if now.Sub(b.windowStart) >= width {
		b.windowStart = now
		b.count = 0
	}
}

// entry carries both windows for one user. The entry mutex makes the
// check-and-increment atomic for frames from the same user without blocking
// unrelated users.
type entry struct {
	mu       sync.Mutex
	sec      bucket
	min      bucket
	lastSeen time.Time
}

type shard struct {
	mu sync.Mutex
	m  map[string]*entry
}

// Limiter tracks per-user counters across a sharded map so concurrent
// frames from different users never contend on a single lock.
type Limiter struct {
	perSecond int
	perMinute int
	shards    [shardCount]shard
	now       func() time.Time
}

// New returns a limiter admitting at most perSecond messages per rolling
// second and perMinute per rolling minute, per user.
func New(perSecond, perMinute int) *Limiter {
	l := &Limiter{perSecond: perSecond, perMinute: perMinute, now: time.Now}
	for i := range l.shards {
		l.shards[i].m = make(map[string]*entry)
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

func (l *Limiter) get(userID string) *entry {
	s := l.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[userID]
	if !ok {
		e = &entry{}
		s.m[userID] = e
	}
	return e
}

// Allow atomically tests both windows for userID and records the message
// when admitted. Two concurrent calls for the same user never both pass on
// a stale count.
func (l *Limiter) Allow(userID string) bool {
	e := l.get(userID)
	now := l.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = now
	e.sec.roll(now, time.Second)
	e.min.roll(now, time.Minute)
	if e.sec.count >= l.perSecond || e.min.count >= l.perMinute {
		return false
	}
	e.sec.count++
	e.min.count++
	return true
}

// Sweep evicts per-user state untouched for longer than maxIdle and returns
// the number of entries removed. It runs off the connection-handling path.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	now := l.now()
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for k, e := range s.m {
			e.mu.Lock()
			idle := now.Sub(e.lastSeen) > maxIdle
			e.mu.Unlock()
			if idle {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len reports the number of tracked users, for tests and metrics.
func (l *Limiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}
