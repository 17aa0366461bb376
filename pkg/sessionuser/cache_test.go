package sessionuser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *recordingMetrics) Counter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	m.counters[name] += value
	m.mu.Unlock()
}

func (m *recordingMetrics) Gauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
}

func (m *recordingMetrics) Histogram(name string, value float64, labels map[string]string) {}

func (m *recordingMetrics) Timer(name string, duration float64, labels map[string]string) {}

func newTestCache(ttl time.Duration, clock *fakeClock) *Cache[string] {
	return NewCache[string](Config{TTL: ttl}, WithClock(clock.Now))
}

func sortedValues(c *Cache[string]) []string {
	values := c.GetAll()
	sort.Strings(values)
	return values
}

func TestCacheAddGet(t *testing.T) {
	c := newTestCache(DefaultTTL, newFakeClock())

	_, ok := c.Get("unknown")
	assert.False(t, ok)

	c.Add("u1", "v1")
	v, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	t.Run("OverwriteKeepsOneEntry", func(t *testing.T) {
		c.Add("u1", "v2")
		v, ok := c.Get("u1")
		require.True(t, ok)
		assert.Equal(t, "v2", v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("InvalidateAbsentKey", func(t *testing.T) {
		assert.NotPanics(t, func() { c.Invalidate("nobody") })
		assert.Equal(t, []string{"v2"}, sortedValues(c))
	})
}

func TestCacheAddInvalidateScenario(t *testing.T) {
	c := newTestCache(DefaultTTL, newFakeClock())

	c.Add("u1", "V1")
	c.Add("u2", "V2")
	c.Add("u3", "V3")
	assert.Len(t, c.GetAll(), 3)

	c.Invalidate("u1")
	_, ok := c.Get("u1")
	assert.False(t, ok)
	assert.Len(t, c.GetAll(), 2)
	assert.Equal(t, []string{"V2", "V3"}, sortedValues(c))
}

func TestCachePurge(t *testing.T) {
	t.Run("FreshEntriesSurvive", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(1234*time.Second, clock)
		c.Add("u1", "V1")
		c.Add("u2", "V2")
		c.Add("u3", "V3")

		assert.Equal(t, 0, c.Purge())
		assert.Len(t, c.GetAll(), 3)
	})

	t.Run("RemovesOnlyEntriesOlderThanTTL", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(10*time.Minute, clock)

		c.Add("old", "old")
		clock.Advance(6 * time.Minute)
		c.Add("young", "young")
		clock.Advance(5 * time.Minute)

		assert.Equal(t, 1, c.Purge())
		assert.Equal(t, []string{"young"}, sortedValues(c))
	})

	t.Run("EntryExactlyAtTTLSurvives", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(time.Minute, clock)
		c.Add("u1", "V1")
		clock.Advance(time.Minute)

		assert.Equal(t, 0, c.Purge())
		clock.Advance(time.Nanosecond)
		assert.Equal(t, 1, c.Purge())
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(0, clock)
		c.Add("u1", "V1")
		clock.Advance(1000 * time.Hour)

		assert.Equal(t, 0, c.Purge())
		assert.Len(t, c.GetAll(), 1)
	})

	t.Run("SetTTLAppliesToNextPurge", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(1234*time.Second, clock)
		c.Add("u1", "V1")
		c.Add("u2", "V2")
		c.Add("u3", "V3")
		assert.Equal(t, 0, c.Purge())

		c.SetTTL(0)
		clock.Advance(2000 * time.Second)
		assert.Equal(t, 0, c.Purge())
		assert.Len(t, c.GetAll(), 3)

		c.SetTTL(time.Second)
		assert.Equal(t, 3, c.Purge())
		assert.Len(t, c.GetAll(), 0)
	})

	t.Run("Idempotent", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(time.Minute, clock)
		c.Add("a", "A")
		clock.Advance(2 * time.Minute)
		c.Add("b", "B")

		c.Purge()
		first := sortedValues(c)
		c.Purge()
		assert.Equal(t, first, sortedValues(c))
		assert.Equal(t, []string{"B"}, first)
	})

	t.Run("GetIgnoresTTLUntilPurge", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(time.Minute, clock)
		c.Add("u1", "V1")
		clock.Advance(time.Hour)

		v, ok := c.Get("u1")
		require.True(t, ok)
		assert.Equal(t, "V1", v)

		c.Purge()
		_, ok = c.Get("u1")
		assert.False(t, ok)
	})

	t.Run("ReAddResetsAge", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(time.Minute, clock)
		c.Add("u1", "V1")
		clock.Advance(50 * time.Second)
		c.Add("u1", "V1b")
		clock.Advance(50 * time.Second)

		assert.Equal(t, 0, c.Purge())
		v, _ := c.Get("u1")
		assert.Equal(t, "V1b", v)
	})
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(0, newFakeClock())
	c.Add("u1", "V1")
	c.Add("u2", "V2")

	assert.Equal(t, 2, c.Clear())
	assert.Empty(t, c.GetAll())
	assert.Equal(t, 0, c.Clear())

	t.Run("FlushAfterDisablingExpiry", func(t *testing.T) {
		c := newTestCache(1234*time.Second, newFakeClock())
		c.Add("u1", "V1")
		c.Add("u2", "V2")
		c.Add("u3", "V3")
		assert.Equal(t, 0, c.Purge())

		c.SetTTL(0)
		assert.Equal(t, 0, c.Purge())
		assert.Len(t, c.GetAll(), 3)

		assert.Equal(t, 3, c.Clear())
		assert.Len(t, c.GetAll(), 0)
	})
}

func TestCacheNegativeTTL(t *testing.T) {
	c := NewCache[string](Config{TTL: -time.Second})
	assert.Equal(t, time.Duration(0), c.TTL())

	c.SetTTL(-time.Minute)
	assert.Equal(t, time.Duration(0), c.TTL())
}

func TestCacheStatsAndMetrics(t *testing.T) {
	clock := newFakeClock()
	m := newRecordingMetrics()
	c := NewCache[string](Config{TTL: time.Minute}, WithClock(clock.Now), WithMetrics(m))

	c.Add("u1", "V1")
	c.Add("u2", "V2")
	c.Get("u1")
	c.Get("missing")
	c.Invalidate("u2")
	c.Invalidate("u2")
	clock.Advance(2 * time.Minute)
	c.Purge()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(2), stats.Adds)
	assert.Equal(t, uint64(1), stats.Invalidations)
	assert.Equal(t, uint64(1), stats.Purged)

	assert.Equal(t, 1.0, m.counters["sessionuser_cache_hits_total"])
	assert.Equal(t, 1.0, m.counters["sessionuser_cache_misses_total"])
	assert.Equal(t, 2.0, m.counters["sessionuser_cache_adds_total"])
	assert.Equal(t, 1.0, m.counters["sessionuser_cache_purged_total"])
	assert.Equal(t, 0.0, m.gauges["sessionuser_cache_entries"])
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache[string](Config{TTL: time.Millisecond})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("u%d", i%20)
				switch i % 5 {
				case 0:
					c.Invalidate(key)
				case 1:
					c.Purge()
				case 2:
					c.GetAll()
				default:
					c.Add(key, fmt.Sprintf("w%d-%d", w, i))
					c.Get(key)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
}

func TestRunPurger(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(time.Minute, clock)
	c.Add("u1", "V1")
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunPurger(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop after cancel")
	}
}
