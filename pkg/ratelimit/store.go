package ratelimit

import (
	"context"

	"ai-saleschat-be/internal/entity"
)

// Store persists admission-control records. Get returns (nil, nil) when
// no record exists. The limiter serializes access per identifier, so a
// store only needs plain get/put/delete semantics.
type Store interface {
	Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error)
	Put(ctx context.Context, record *entity.RateLimitRecord) error
	Delete(ctx context.Context, identifier string) error
	List(ctx context.Context) ([]*entity.RateLimitRecord, error)
}
