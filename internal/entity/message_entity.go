package entity

import (
	"time"

	"github.com/google/uuid"
)

// ToolCall is the structured payload attached to tool-role messages.
type ToolCall struct {
	Tool   string                 `json:"tool"`
	Input  map[string]interface{} `json:"input,omitempty"`
	Output string                 `json:"output,omitempty"`
}

// Message is append-only per session; rows are never updated.
type Message struct {
	Id         uuid.UUID
	SessionId  uuid.UUID
	Role       string
	Content    string
	TokenCount *int
	ToolCall   *ToolCall
	CreatedAt  time.Time
}
