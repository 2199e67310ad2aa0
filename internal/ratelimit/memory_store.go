package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Counters are not shared between
// processes, so it only enforces the configured budget for single-instance
// deployments; it is the fallback when Redis is unreachable at startup.
type MemoryStore struct {
	mu         sync.Mutex
	windows    map[string]*window
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore returns an empty store tracking at most maxEntries keys
// (10000 when <= 0). When full, expired windows are swept first; if none
// expired, the window closest to expiry is evicted, which resets that key's
// count early.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryStore{
		windows:    make(map[string]*window),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (s *MemoryStore) Consume(_ context.Context, key string, limit int, win time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		if !ok && len(s.windows) >= s.maxEntries {
			s.sweep(now)
			if len(s.windows) >= s.maxEntries {
				s.evictOldest()
			}
		}
		s.windows[key] = &window{count: 1, expiresAt: now.Add(win)}
		return Result{Allowed: true, Count: 1, ResetIn: win}, nil
	}

	resetIn := w.expiresAt.Sub(now)
	if w.count >= int64(limit) {
		return Result{Allowed: false, Count: w.count, ResetIn: resetIn}, nil
	}
	w.count++
	return Result{Allowed: true, Count: w.count, ResetIn: resetIn}, nil
}

// Len reports the number of tracked keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sweep must be called with mu held.
func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, k)
		}
	}
}

// evictOldest must be called with mu held.
func (s *MemoryStore) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for k, w := range s.windows {
		if oldest == "" || w.expiresAt.Before(at) {
			oldest, at = k, w.expiresAt
		}
	}
	delete(s.windows, oldest)
}
