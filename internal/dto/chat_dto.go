package dto

import (
	"time"

	"github.com/google/uuid"
)

// SendChatRequest is the inbound transport frame. SessionId is optional:
// a missing id creates a fresh session in the greeting stage.
type SendChatRequest struct {
	Message   string                 `json:"message" validate:"required,min=1,max=8000"`
	SessionId *uuid.UUID             `json:"session_id,omitempty"`
	TenantId  uuid.UUID              `json:"tenant_id" validate:"required"`
	UserId    *uuid.UUID             `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Stream    bool                   `json:"stream"`
}

type SendChatResponse struct {
	Response  string                 `json:"response"`
	SessionId uuid.UUID              `json:"session_id"`
	Stage     string                 `json:"stage"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StreamFrame is one chunk of a streamed response delivered over the
// websocket hub.
type StreamFrame struct {
	SessionId uuid.UUID `json:"session_id"`
	Chunk     string    `json:"chunk"`
	Done      bool      `json:"done"`
}

type SessionResponse struct {
	Id           uuid.UUID    `json:"id"`
	TenantId     uuid.UUID    `json:"tenant_id"`
	CurrentStage string       `json:"current_stage"`
	StageHistory []StageVisit `json:"stage_history"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
}

type StageVisit struct {
	Stage     string     `json:"stage"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

type ChatHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type EndSessionRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
}
