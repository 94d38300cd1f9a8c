// ABOUTME: Tests for the update id window
// ABOUTME: Validates repeats, expiry, size-bounded eviction and concurrent callers

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestWindow_FirstSightingThenRepeat(t *testing.T) {
	w := New(time.Minute, 100)
	defer w.Close()

	assert.False(t, w.Seen(42))
	assert.True(t, w.Seen(42))
	assert.True(t, w.Seen(42))
	assert.False(t, w.Seen(43))
	assert.Equal(t, 2, w.Len())
}

func TestWindow_Expiry(t *testing.T) {
	c := newClock()
	w := New(5*time.Minute, 100, WithClock(c.now))
	defer w.Close()

	assert.False(t, w.Seen(1))
	c.advance(4 * time.Minute)
	assert.True(t, w.Seen(1))
	assert.False(t, w.Seen(2))

	c.advance(time.Minute)
	assert.False(t, w.Seen(1), "expired ids count as new")
	assert.True(t, w.Seen(2))
}

func TestWindow_RepeatDoesNotExtend(t *testing.T) {
	c := newClock()
	w := New(time.Minute, 100, WithClock(c.now))
	defer w.Close()

	w.Seen(7)
	c.advance(50 * time.Second)
	assert.True(t, w.Seen(7))
	c.advance(10 * time.Second)
	assert.False(t, w.Seen(7))
}

func TestWindow_EvictsOldestAtCapacity(t *testing.T) {
	w := New(time.Hour, 3)
	defer w.Close()

	w.Seen(1)
	w.Seen(2)
	w.Seen(3)
	w.Seen(4)

	assert.Equal(t, 3, w.Len())
	assert.True(t, w.Seen(2))
	assert.True(t, w.Seen(3))
	assert.True(t, w.Seen(4))
	assert.False(t, w.Seen(1), "oldest id was evicted")
}

func TestWindow_ZeroSize(t *testing.T) {
	w := New(time.Hour, 0)
	defer w.Close()

	assert.False(t, w.Seen(1))
	assert.True(t, w.Seen(1))
}

func TestWindow_ConcurrentSeen(t *testing.T) {
	w := New(time.Hour, 1000)
	defer w.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !w.Seen(99) {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller sees the id as new")
}

func TestWindow_CloseTwice(t *testing.T) {
	w := New(time.Minute, 10)
	w.Close()
	w.Close()
}
