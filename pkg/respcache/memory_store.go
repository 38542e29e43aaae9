package respcache

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in go-cache (which owns TTL bookkeeping and
// the janitor) plus a tag index maintained alongside for grouped
// invalidation.
type MemoryStore struct {
	entries *cache.Cache

	mu   sync.Mutex
	tags map[string]map[string]struct{} // tag -> set of keys
}

var _ Store = &MemoryStore{}

func NewMemoryStore(defaultTTL, sweepInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: cache.New(defaultTTL, sweepInterval),
		tags:    make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	x, found := s.entries.Get(key)
	if !found {
		return nil, nil
	}
	entry := x.(*Entry)

	s.mu.Lock()
	entry.AccessCount++
	entry.LastAccessedAt = time.Now()
	clone := *entry
	s.mu.Unlock()

	return &clone, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, entry *Entry) error {
	s.entries.Set(key, entry, time.Until(entry.ExpiresAt))

	s.mu.Lock()
	for _, tag := range entry.Tags {
		if s.tags[tag] == nil {
			s.tags[tag] = make(map[string]struct{})
		}
		s.tags[tag][key] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

func (s *MemoryStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	s.mu.Lock()
	keys := s.tags[tag]
	delete(s.tags, tag)
	s.mu.Unlock()

	removed := 0
	for key := range keys {
		if _, found := s.entries.Get(key); found {
			removed++
		}
		s.entries.Delete(key)
	}
	return removed, nil
}

func (s *MemoryStore) Flush(ctx context.Context) (int, error) {
	count := s.entries.ItemCount()
	s.entries.Flush()

	s.mu.Lock()
	s.tags = make(map[string]map[string]struct{})
	s.mu.Unlock()
	return count, nil
}

// Sweep defers to the go-cache janitor for expiry; it only prunes tag
// index entries whose keys are gone.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.entries.DeleteExpired()

	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for tag, keys := range s.tags {
		for key := range keys {
			if _, found := s.entries.Get(key); !found {
				delete(keys, key)
				pruned++
			}
		}
		if len(keys) == 0 {
			delete(s.tags, tag)
		}
	}
	return pruned, nil
}
