package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many calls pass between purges of expired windows.
const sweepEvery = 1024

type bucket struct {
	count int
	until time.Time
}

// MemoryLimiter is the single-instance counterpart of RedisLimiter: the same
// fixed-window counting, kept in process memory.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	keys  map[string]*bucket
	calls int
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		keys:   make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		for k, w := range l.keys {
			if !now.Before(w.until) {
				delete(l.keys, k)
			}
		}
	}

	w, ok := l.keys[key]
	if !ok || !now.Before(w.until) {
		w = &bucket{until: now.Add(l.window)}
		l.keys[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}
