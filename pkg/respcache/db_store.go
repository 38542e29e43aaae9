package respcache

import (
	"context"
	"time"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/repository/contract"
)

// DbStore backs the response cache with postgres. It trades latency for
// durability and is the fallback tier when redis is unreachable.
type DbStore struct {
	repo contract.CacheEntryRepository
}

func NewDbStore(repo contract.CacheEntryRepository) *DbStore {
	return &DbStore{repo: repo}
}

func (s *DbStore) Get(ctx context.Context, key string) (*Entry, error) {
	record, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return &Entry{
		Value:          record.Value,
		Tags:           record.Tags,
		ExpiresAt:      record.ExpiresAt,
		AccessCount:    record.AccessCount,
		LastAccessedAt: record.LastAccessedAt,
	}, nil
}

func (s *DbStore) Set(ctx context.Context, key string, entry *Entry) error {
	return s.repo.Put(ctx, &entity.CacheEntry{
		Key:            key,
		Value:          entry.Value,
		Tags:           entry.Tags,
		ExpiresAt:      entry.ExpiresAt,
		AccessCount:    entry.AccessCount,
		LastAccessedAt: entry.LastAccessedAt,
		CreatedAt:      time.Now(),
	})
}

func (s *DbStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

func (s *DbStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	removed, err := s.repo.DeleteByTag(ctx, tag)
	return int(removed), err
}

func (s *DbStore) Flush(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteAll(ctx)
	return int(removed), err
}

func (s *DbStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.repo.DeleteExpired(ctx, now)
	return int(removed), err
}
