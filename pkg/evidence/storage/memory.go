package storage

import (
	"context"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/evidence"
)

// Memory is an in-process evidence store.
type Memory struct {
	mu      sync.RWMutex
	records []evidence.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save writes one record.
func (m *Memory) Save(_ context.Context, rec evidence.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// ByRequest returns all records for a request ID, oldest first.
func (m *Memory) ByRequest(_ context.Context, requestID string) ([]evidence.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []evidence.Record
	for _, rec := range m.records {
		if rec.RequestID == requestID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Prune deletes records created before the cutoff.
func (m *Memory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var removed int64
	for _, rec := range m.records {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return removed, nil
}

// Close releases store resources. A no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
