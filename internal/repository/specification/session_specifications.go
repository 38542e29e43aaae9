package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantOwnedBy scopes queries to one tenant.
type TenantOwnedBy struct {
	TenantID uuid.UUID
}

func (s TenantOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("tenant_id = ?", s.TenantID)
}

// BySession scopes message queries to one session.
type BySession struct {
	SessionID uuid.UUID
}

func (s BySession) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// IdleSince selects sessions whose last activity predates the cutoff,
// used by the idle GC sweep.
type IdleSince struct {
	Cutoff time.Time
}

func (s IdleSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_active_at < ?", s.Cutoff)
}

// NotInStage excludes sessions already in the given stage.
type NotInStage struct {
	Stage string
}

func (s NotInStage) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("current_stage <> ?", s.Stage)
}

// ExpiredBefore selects cache entries whose TTL elapsed before the
// cutoff, used by the periodic sweep.
type ExpiredBefore struct {
	Cutoff time.Time
}

func (s ExpiredBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at < ?", s.Cutoff)
}
