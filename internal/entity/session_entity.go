package entity

import (
	"time"

	"github.com/google/uuid"
)

// StageVisit is one entry of a session's stage history. ExitedAt is nil
// for the stage the session is currently in.
type StageVisit struct {
	Stage     string                 `json:"stage"`
	EnteredAt time.Time              `json:"entered_at"`
	ExitedAt  *time.Time             `json:"exited_at,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Session tracks one conversation through the sales funnel.
// CurrentStage always equals the stage of the last history entry.
type Session struct {
	Id           uuid.UUID
	TenantId     uuid.UUID
	UserId       *uuid.UUID // nil for anonymous/guest flows
	CurrentStage string
	StageHistory []StageVisit
	Context      map[string]interface{}
	CreatedAt    time.Time
	LastActiveAt time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
}
