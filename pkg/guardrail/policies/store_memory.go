package policies

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore is an in-process sliding-window counter. Suitable for
// single-instance deployments and tests.
type MemoryCounterStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Increment records one request and returns the trailing-window count.
func (s *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	kept := s.buckets[key][:0]
	for _, t := range s.buckets[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.buckets[key] = kept

	return len(kept), nil
}

// Close releases store resources. A no-op for the in-memory store.
func (s *MemoryCounterStore) Close() error {
	return nil
}
