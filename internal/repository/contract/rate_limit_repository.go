package contract

import (
	"context"

	"ai-saleschat-be/internal/entity"
)

type RateLimitRepository interface {
	// Get returns (nil, nil) when no record exists for the identifier.
	Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error)
	Upsert(ctx context.Context, record *entity.RateLimitRecord) error
	Delete(ctx context.Context, identifier string) error
	FindAll(ctx context.Context) ([]*entity.RateLimitRecord, error)
}
