package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key. Buckets untouched for one
// window are full again and get dropped; at most maxKeys are held.
type MemoryLimiter struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	limit    int
	interval time.Duration
	ttl      time.Duration
	maxKeys  int
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, maxKeys int) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &MemoryLimiter{
		entries:  make(map[string]*memoryEntry),
		limit:    limit,
		interval: window / time.Duration(limit),
		ttl:      window,
		maxKeys:  maxKeys,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxKeys {
			l.evict(now)
		}
		e = &memoryEntry{limiter: rate.NewLimiter(rate.Every(l.interval), l.limit)}
		l.entries[key] = e
	}
	e.lastSeen = now

	allowed := e.limiter.AllowN(now, 1)
	tokens := e.limiter.TokensAt(now)

	res := Result{Limit: l.limit, Remaining: max(int(math.Floor(tokens)), 0)}
	if !allowed {
		res.Reset = time.Duration((1 - tokens) * float64(l.interval))
		return res, ErrLimited
	}
	res.Reset = time.Duration((float64(l.limit) - tokens) * float64(l.interval))
	return res, nil
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops idle entries.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
}

// evict drops idle entries, then the least recently seen one if the map is
// still full. Caller holds mu.
func (l *MemoryLimiter) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.ttl {
			delete(l.entries, k)
			continue
		}
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = k, e.lastSeen
		}
	}
	if len(l.entries) >= l.maxKeys && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// Run sweeps every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
