package memory

import (
	"time"

	"ai-saleschat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps hot sessions in process memory so a turn does
// not hit postgres for every lookup. Expired entries are purged by the
// go-cache janitor; the durable row in postgres is the source of truth.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(idleTTL time.Duration) *SessionRepository {
	c := cache.New(idleTTL, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *entity.Session) {
	r.cache.Set(session.Id.String(), session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID uuid.UUID) (*entity.Session, bool) {
	if x, found := r.cache.Get(sessionID.String()); found {
		return x.(*entity.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID uuid.UUID) {
	r.cache.Delete(sessionID.String())
}

// Items returns a snapshot of all cached sessions, used by the idle
// timeout sweep.
func (r *SessionRepository) Items() []*entity.Session {
	items := r.cache.Items()
	sessions := make([]*entity.Session, 0, len(items))
	for _, item := range items {
		if s, ok := item.Object.(*entity.Session); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}
