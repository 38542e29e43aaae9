package dto

import "time"

type FlushCacheRequest struct {
	Tag string `json:"tag,omitempty"` // Empty flushes everything
}

type FlushCacheResponse struct {
	Removed int `json:"removed"`
}

type RateLimitStateResponse struct {
	Identifier   string     `json:"identifier"`
	WindowStart  time.Time  `json:"window_start"`
	RequestCount int        `json:"request_count"`
	Violations   int        `json:"violations"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

type ReloadRoutingResponse struct {
	DefaultModel  string `json:"default_model"`
	FallbackModel string `json:"fallback_model"`
}
