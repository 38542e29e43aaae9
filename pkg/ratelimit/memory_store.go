package ratelimit

import (
	"context"
	"sync"

	"ai-saleschat-be/internal/entity"
)

// MemoryStore is the single-process store, used in development and in
// tests. Records never expire here; the window logic in the limiter
// makes stale records harmless.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*entity.RateLimitRecord
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*entity.RateLimitRecord),
	}
}

func (s *MemoryStore) Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) Put(ctx context.Context, record *entity.RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.Identifier] = &clone
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*entity.RateLimitRecord, 0, len(s.records))
	for _, r := range s.records {
		clone := *r
		records = append(records, &clone)
	}
	return records, nil
}
