// Package store holds fixed-window counters for the rate limiter.
package store

import (
	"context"
	"sync"
	"time"

	"autoshield/internal/ratelimit/models"
)

// InMemoryStore keeps fixed-window counters in process memory. It is not
// shared between instances; it backs single-node runs and the fallback path.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
	// sweeps counts Allow calls so expired windows are pruned periodically.
	sweeps int
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// sweepEvery is how many Allow calls pass between expired-window sweeps.
const sweepEvery = 1024

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// Allow counts one hit for key and reports whether it is within limit.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweeps++
	if s.sweeps >= sweepEvery {
		s.sweeps = 0
		for k, w := range s.windows {
			if !now.Before(w.resetAt) {
				delete(s.windows, k)
			}
		}
	}

	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return models.NewResult(w.count, limit, w.resetAt, now), nil
}

// Reset clears the counter for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
