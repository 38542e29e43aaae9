package ratelimit

import (
	"context"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/repository/contract"
)

// DbStore keeps admission records in postgres. Slower than redis but
// durable; deployments without redis fall back here so blocks survive
// restarts.
type DbStore struct {
	repo contract.RateLimitRepository
}

func NewDbStore(repo contract.RateLimitRepository) *DbStore {
	return &DbStore{repo: repo}
}

func (s *DbStore) Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error) {
	return s.repo.Get(ctx, identifier)
}

func (s *DbStore) Put(ctx context.Context, record *entity.RateLimitRecord) error {
	return s.repo.Upsert(ctx, record)
}

func (s *DbStore) Delete(ctx context.Context, identifier string) error {
	return s.repo.Delete(ctx, identifier)
}

func (s *DbStore) List(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	return s.repo.FindAll(ctx)
}
