package model

import "time"

type RateLimitRecord struct {
	Identifier   string     `gorm:"type:text;primaryKey"`
	WindowStart  time.Time  `gorm:"not null"`
	RequestCount int        `gorm:"not null;default:0"`
	Violations   int        `gorm:"not null;default:0"`
	BlockedUntil *time.Time `gorm:"index"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (RateLimitRecord) TableName() string {
	return "rate_limit_records"
}
