package contract

import (
	"context"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/repository/specification"
)

// MessageRepository is append/read only: messages are immutable once
// written, so there is no Update.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
