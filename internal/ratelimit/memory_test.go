package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryLimiter(limit int, window time.Duration, maxKeys int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(limit, window, maxKeys)
	l.now = clock.now
	return l, clock
}

func TestMemoryLimiter_BurstThenRefill(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(3, time.Minute, 10)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, ErrLimited)
	assert.Equal(t, 0, res.Remaining)
	assert.InDelta(t, float64(20*time.Second), float64(res.Reset), float64(time.Millisecond))

	// other keys have their own bucket
	_, err = l.Allow(ctx, "10.0.0.2")
	assert.NoError(t, err)

	clock.advance(20 * time.Second)
	_, err = l.Allow(ctx, "10.0.0.1")
	assert.NoError(t, err)
	_, err = l.Allow(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, ErrLimited)
}

func TestMemoryLimiter_EvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(5, time.Minute, 100)

	for _, k := range []string{"a", "b", "c"} {
		_, err := l.Allow(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Len())

	clock.advance(30 * time.Second)
	_, _ = l.Allow(ctx, "a")

	clock.advance(31 * time.Second)
	l.Sweep()
	assert.Equal(t, 1, l.Len(), "only the recently seen key survives")
}

func TestMemoryLimiter_BoundedByMaxKeys(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(5, time.Minute, 2)

	_, _ = l.Allow(ctx, "first")
	clock.advance(time.Second)
	_, _ = l.Allow(ctx, "second")
	clock.advance(time.Second)
	_, _ = l.Allow(ctx, "third")

	assert.Equal(t, 2, l.Len())
	l.mu.Lock()
	_, hasFirst := l.entries["first"]
	l.mu.Unlock()
	assert.False(t, hasFirst, "least recently seen key is evicted")
}

func TestMemoryLimiter_NeverExceedsLimitAtOneInstant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 20).Draw(t, "limit")
		calls := rapid.IntRange(0, 60).Draw(t, "calls")

		l, _ := newTestMemoryLimiter(limit, time.Minute, 10)
		allowed := 0
		for i := 0; i < calls; i++ {
			if _, err := l.Allow(context.Background(), "k"); err == nil {
				allowed++
			}
		}
		want := min(calls, limit)
		if allowed != want {
			t.Fatalf("allowed %d of %d calls with limit %d", allowed, calls, limit)
		}
	})
}

func TestNew_SelectsBackend(t *testing.T) {
	l, err := New(config.RateLimitConfig{Backend: "memory", MaxKeys: 5}, nil, "api", 10, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	_, err = New(config.RateLimitConfig{Backend: "redis"}, nil, "api", 10, time.Minute)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Backend: "carrier-pigeon"}, nil, "api", 10, time.Minute)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Backend: "memory"}, nil, "api", 0, time.Minute)
	assert.Error(t, err)
}
