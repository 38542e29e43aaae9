package model

import "time"

type CacheEntry struct {
	Key            string    `gorm:"type:text;primaryKey"`
	Value          []byte    `gorm:"type:bytea;not null"`
	Tags           []byte    `gorm:"type:jsonb"` // Serialized []string
	ExpiresAt      time.Time `gorm:"not null;index"`
	AccessCount    int64     `gorm:"not null;default:0"`
	LastAccessedAt time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
