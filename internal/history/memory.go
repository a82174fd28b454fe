package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory. It backs tests and runs
// with history disabled.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Record{}}
}

// Save writes one finished run.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}
	if rec.RunID == "" {
		return errors.New("record must have a run ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.RunID]; exists {
		return fmt.Errorf("run %s already saved", rec.RunID)
	}
	cp := *rec
	s.records[rec.RunID] = &cp
	return nil
}

// Recent returns up to limit records, newest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record for one run ID.
func (s *MemoryStore) Get(_ context.Context, runID string) (*Record, error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
