package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Session struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantId     uuid.UUID      `gorm:"type:uuid;not null;index"` // Tenant ownership for data isolation
	UserId       *uuid.UUID     `gorm:"type:uuid;index"`          // Nullable: guest sessions have no user
	CurrentStage string         `gorm:"type:text;not null"`
	StageHistory []byte         `gorm:"type:jsonb"` // Serialized []entity.StageVisit
	Context      []byte         `gorm:"type:jsonb"` // Serialized map[string]interface{}
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	LastActiveAt time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Session) TableName() string {
	return "sessions"
}
