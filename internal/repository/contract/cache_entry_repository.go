package contract

import (
	"context"
	"time"

	"ai-saleschat-be/internal/entity"
)

type CacheEntryRepository interface {
	// Get returns (nil, nil) on missing key.
	Get(ctx context.Context, key string) (*entity.CacheEntry, error)
	Put(ctx context.Context, entry *entity.CacheEntry) error
	Delete(ctx context.Context, key string) error
	DeleteByTag(ctx context.Context, tag string) (int64, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}
