package unitofwork

import (
	"context"

	"ai-saleschat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	MessageRepository() contract.MessageRepository
	RateLimitRepository() contract.RateLimitRepository
	CacheEntryRepository() contract.CacheEntryRepository
}
