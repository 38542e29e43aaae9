package entity

import "time"

// RateLimitRecord is the admission-control state for one identifier
// (user, IP or API-key hash) within the current window.
type RateLimitRecord struct {
	Identifier   string
	WindowStart  time.Time
	RequestCount int
	Violations   int
	BlockedUntil *time.Time
	UpdatedAt    time.Time
}
