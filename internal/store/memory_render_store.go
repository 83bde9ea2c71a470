package store

import (
	"context"
	"sync"
)

// MemoryRenderStore keeps recent render records in memory. Suitable
// for development and single-process deployments.
type MemoryRenderStore struct {
	mu      sync.RWMutex
	entries []RenderLog
	max     int
}

func NewMemoryRenderStore(max int) *MemoryRenderStore {
	if max <= 0 {
		max = 1024
	}
	return &MemoryRenderStore{max: max}
}

func (s *MemoryRenderStore) Record(_ context.Context, entry RenderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

func (s *MemoryRenderStore) Recent(_ context.Context, limit int) ([]RenderLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}

	// Newest first.
	out := make([]RenderLog, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
