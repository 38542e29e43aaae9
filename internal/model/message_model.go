package model

import (
	"time"

	"github.com/google/uuid"
)

// Message has no UpdatedAt/DeletedAt on purpose: rows are append-only.
type Message struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId  uuid.UUID `gorm:"type:uuid;not null;index"`
	Role       string    `gorm:"type:text;not null"`
	Content    string    `gorm:"type:text;not null"`
	TokenCount *int      `gorm:"type:int"`
	ToolCall   []byte    `gorm:"type:jsonb"` // Serialized entity.ToolCall, null for plain messages
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
