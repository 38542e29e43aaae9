package respcache

import (
	"context"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Value          []byte    `json:"value"`
	Tags           []string  `json:"tags,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	AccessCount    int64     `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Store is the cache backing store. Get returns (nil, nil) on a miss;
// an error means the backend itself is unavailable, which the cache
// degrades to a miss rather than failing the request.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	DeleteByTag(ctx context.Context, tag string) (int, error)
	Flush(ctx context.Context) (int, error)
	// Sweep removes expired entries; backends with native TTL may no-op.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
