package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/repository/memory"
	"ai-saleschat-be/internal/repository/specification"
	"ai-saleschat-be/internal/repository/unitofwork"
	"ai-saleschat-be/pkg/funnel"

	"github.com/google/uuid"
)

// Manager owns session lifecycle: lookup/create, the per-session lock
// that serializes turns, and the idle sweep that walks stale sessions
// back to their recovery stage. Hot sessions live in process memory;
// postgres is the source of truth.
type Manager struct {
	hot        *memory.SessionRepository
	machine    *funnel.Machine
	uowFactory unitofwork.RepositoryFactory
	logger     *log.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewManager(hot *memory.SessionRepository, machine *funnel.Machine, uowFactory unitofwork.RepositoryFactory, logger *log.Logger) *Manager {
	return &Manager{
		hot:        hot,
		machine:    machine,
		uowFactory: uowFactory,
		logger:     logger,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

// Lock serializes message handling per session: a session never
// processes two turns at once. Callers must call the returned unlock.
func (m *Manager) Lock(sessionID uuid.UUID) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// LookupOrCreate resolves a session id to a live session, creating a
// fresh greeting-stage session when the id is nil or unknown. The bool
// reports whether a new session was created.
func (m *Manager) LookupOrCreate(ctx context.Context, uow unitofwork.UnitOfWork, sessionID *uuid.UUID, tenantID uuid.UUID, userID *uuid.UUID, now time.Time) (*entity.Session, bool, error) {
	if sessionID == nil {
		session := m.newSession(uuid.New(), tenantID, userID, now)
		if err := uow.SessionRepository().Create(ctx, session); err != nil {
			return nil, false, fmt.Errorf("create session: %w", err)
		}
		m.hot.Save(session)
		m.logger.Printf("[SESSION] created %s for tenant %s", session.Id, tenantID)
		return session, true, nil
	}

	if session, found := m.hot.Get(*sessionID); found {
		return session, false, nil
	}

	session, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: *sessionID},
		specification.TenantOwnedBy{TenantID: tenantID},
	)
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		// First message carrying a client-chosen id: honor it.
		session = m.newSession(*sessionID, tenantID, userID, now)
		if err := uow.SessionRepository().Create(ctx, session); err != nil {
			return nil, false, fmt.Errorf("create session: %w", err)
		}
		m.hot.Save(session)
		m.logger.Printf("[SESSION] created %s (client id) for tenant %s", session.Id, tenantID)
		return session, true, nil
	}

	m.hot.Save(session)
	return session, false, nil
}

// Reopen starts a fresh greeting session for a caller whose previous
// session reached closed. The old session id never comes back to life.
func (m *Manager) Reopen(ctx context.Context, uow unitofwork.UnitOfWork, tenantID uuid.UUID, userID *uuid.UUID, now time.Time) (*entity.Session, error) {
	session := m.newSession(uuid.New(), tenantID, userID, now)
	if err := uow.SessionRepository().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("reopen session: %w", err)
	}
	m.hot.Save(session)
	m.logger.Printf("[SESSION] reopened as %s for tenant %s", session.Id, tenantID)
	return session, nil
}

// Persist writes the mutated session through to postgres and refreshes
// the hot copy.
func (m *Manager) Persist(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.Session, now time.Time) error {
	session.UpdatedAt = &now
	if err := uow.SessionRepository().Update(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	m.hot.Save(session)
	return nil
}

// Evict drops a session from the hot cache, used when a session closes.
func (m *Manager) Evict(sessionID uuid.UUID) {
	m.hot.Delete(sessionID)

	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
}

func (m *Manager) newSession(id, tenantID uuid.UUID, userID *uuid.UUID, now time.Time) *entity.Session {
	return &entity.Session{
		Id:           id,
		TenantId:     tenantID,
		UserId:       userID,
		CurrentStage: string(funnel.StageGreeting),
		StageHistory: []entity.StageVisit{{
			Stage:     string(funnel.StageGreeting),
			EnteredAt: now,
		}},
		Context:      map[string]interface{}{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// StartIdleSweep walks hot sessions back to their recovery stage when
// they sit idle past the stage timeout. Runs until ctx is cancelled.
func (m *Manager) StartIdleSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweepIdle(ctx, now)
				m.sweepIdleCold(ctx, now)
			}
		}
	}()
}

func (m *Manager) sweepIdle(ctx context.Context, now time.Time) {
	for _, candidate := range m.hot.Items() {
		recovery, fired := m.machine.CheckIdle(candidate, now)
		if !fired {
			continue
		}

		unlock := m.Lock(candidate.Id)
		// Re-check under the lock: a message may have landed between the
		// snapshot and here.
		session, found := m.hot.Get(candidate.Id)
		if !found {
			unlock()
			continue
		}
		recovery, fired = m.machine.CheckIdle(session, now)
		if !fired {
			unlock()
			continue
		}

		m.machine.Apply(session, recovery, now, map[string]interface{}{"idle_recovery": true})

		uow := m.uowFactory.NewUnitOfWork(ctx)
		if err := m.Persist(ctx, uow, session, now); err != nil {
			m.logger.Printf("[SESSION] idle recovery persist failed for %s: %v", session.Id, err)
		} else {
			m.logger.Printf("[SESSION] %s idled out, walked back to %s", session.Id, recovery)
		}
		unlock()
	}
}

// sweepIdleCold covers sessions that fell out of the hot store (or
// belong to another instance) but still sit idle in postgres. Hot
// sessions are skipped; the hot pass already handled them.
func (m *Manager) sweepIdleCold(ctx context.Context, now time.Time) {
	shortest := m.machine.ShortestTimeout()
	if shortest <= 0 {
		return
	}

	uow := m.uowFactory.NewUnitOfWork(ctx)
	candidates, err := uow.SessionRepository().FindAll(ctx,
		specification.IdleSince{Cutoff: now.Add(-shortest)},
		specification.NotInStage{Stage: string(funnel.StageClosed)},
	)
	if err != nil {
		m.logger.Printf("[SESSION] cold idle sweep query failed: %v", err)
		return
	}

	for _, candidate := range candidates {
		unlock := m.Lock(candidate.Id)
		if _, found := m.hot.Get(candidate.Id); found {
			unlock()
			continue
		}

		recovery, fired := m.machine.CheckIdle(candidate, now)
		if !fired {
			unlock()
			continue
		}

		m.machine.Apply(candidate, recovery, now, map[string]interface{}{"idle_recovery": true})
		if err := m.Persist(ctx, uow, candidate, now); err != nil {
			m.logger.Printf("[SESSION] cold idle recovery persist failed for %s: %v", candidate.Id, err)
		} else {
			m.logger.Printf("[SESSION] %s idled out cold, walked back to %s", candidate.Id, recovery)
		}
		unlock()
	}
}
