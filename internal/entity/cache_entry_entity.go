package entity

import "time"

// CacheEntry is a durable snapshot of one response-cache slot, used by
// the gorm-backed store and the admin inspect surface. The hot path
// works on the in-memory/redis representation in pkg/respcache.
type CacheEntry struct {
	Key            string
	Value          []byte
	Tags           []string
	ExpiresAt      time.Time
	AccessCount    int64
	LastAccessedAt time.Time
	CreatedAt      time.Time
}
