package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives the limiter deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(perSecond, perMinute int) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(perSecond, perMinute)
	l.now = clk.now
	return l, clk
}

func TestSecondWindowDeniesSixth(t *testing.T) {
	l, clk := newTestLimiter(5, 30)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("u1"), "message %d within the second should pass", i+1)
		clk.advance(150 * time.Millisecond) // all five inside 900ms
	}
	assert.False(t, l.Allow("u1"), "sixth message in the same second must be denied")

	clk.advance(time.Second)
	assert.True(t, l.Allow("u1"), "window rolls over after a second")
}

func TestMinuteWindowDeniesThirtyFirst(t *testing.T) {
	l, clk := newTestLimiter(5, 30)
	accepted := 0
	for i := 0; i < 30; i++ {
		if l.Allow("u1") {
			accepted++
		}
		clk.advance(1100 * time.Millisecond) // stay under the per-second cap
	}
	assert.Equal(t, 30, accepted)
	assert.False(t, l.Allow("u1"), "31st message inside the minute must be denied")
}

func TestUsersDoNotShareBudget(t *testing.T) {
	l, _ := newTestLimiter(5, 30)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("u1"))
	}
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "another user's budget is untouched")
}

func TestDeniedMessagesDoNotConsumeBudget(t *testing.T) {
	l, clk := newTestLimiter(2, 30)
	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	for i := 0; i < 10; i++ {
		assert.False(t, l.Allow("u1"))
	}
	clk.advance(time.Second)
	// the denials above must not have eaten into the minute budget
	assert.True(t, l.Allow("u1"))
}

func TestSweepEvictsIdleUsers(t *testing.T) {
	l, clk := newTestLimiter(5, 30)
	l.Allow("idle")
	clk.advance(30 * time.Minute)
	l.Allow("busy")
	assert.Equal(t, 2, l.Len())

	removed := l.Sweep(10 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())
}

func TestConcurrentAllowNeverOveradmits(t *testing.T) {
	l, _ := newTestLimiter(5, 30)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("u1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, admitted)
}
