package events

import "time"

// Event type codes published on the bus.
const (
	TypeCacheInvalidated   = "CACHE_INVALIDATED"
	TypeCacheFlushed       = "CACHE_FLUSHED"
	TypeSessionStageMoved  = "SESSION_STAGE_MOVED"
	TypeSessionClosed      = "SESSION_CLOSED"
	TypeAdmissionBlocked   = "ADMISSION_BLOCKED"
)

// NewCacheInvalidated is published when a tag invalidation runs, so
// sibling instances drop their local copies.
func NewCacheInvalidated(tag string, removed int) Event {
	return BaseEvent{
		Type: TypeCacheInvalidated,
		Data: map[string]interface{}{
			"tag":     tag,
			"removed": removed,
		},
		OccurredAt: time.Now(),
	}
}

func NewCacheFlushed(removed int) Event {
	return BaseEvent{
		Type: TypeCacheFlushed,
		Data: map[string]interface{}{
			"removed": removed,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionStageMoved(sessionId, from, to, signal string) Event {
	return BaseEvent{
		Type: TypeSessionStageMoved,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"from":       from,
			"to":         to,
			"signal":     signal,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionClosed(sessionId, reason string) Event {
	return BaseEvent{
		Type: TypeSessionClosed,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

func NewAdmissionBlocked(identifier string, retryAfterSeconds float64) Event {
	return BaseEvent{
		Type: TypeAdmissionBlocked,
		Data: map[string]interface{}{
			"identifier":  identifier,
			"retry_after": retryAfterSeconds,
		},
		OccurredAt: time.Now(),
	}
}
