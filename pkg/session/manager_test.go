package session

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/repository/contract"
	"ai-saleschat-be/internal/repository/memory"
	"ai-saleschat-be/internal/repository/specification"
	"ai-saleschat-be/internal/repository/unitofwork"
	"ai-saleschat-be/pkg/funnel"

	"github.com/google/uuid"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session
	creates  int
	updates  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*entity.Session{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			return r.sessions[byID.ID], nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	return nil, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.sessions)), nil
}

type fakeUow struct {
	sessions *fakeSessionRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) SessionRepository() contract.SessionRepository       { return u.sessions }
func (u *fakeUow) MessageRepository() contract.MessageRepository       { return nil }
func (u *fakeUow) RateLimitRepository() contract.RateLimitRepository   { return nil }
func (u *fakeUow) CacheEntryRepository() contract.CacheEntryRepository { return nil }

type fakeFactory struct {
	sessions *fakeSessionRepo
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{sessions: f.sessions}
}

func newTestManager(repo *fakeSessionRepo) (*Manager, *memory.SessionRepository) {
	machine := funnel.NewMachine(config.FunnelConfig{
		StageTimeouts: map[string]time.Duration{
			"discovery":      30 * time.Minute,
			"recommendation": 30 * time.Minute,
		},
	}, log.New(io.Discard, "", 0))

	hot := memory.NewSessionRepository(time.Hour)
	return NewManager(hot, machine, &fakeFactory{sessions: repo}, log.New(io.Discard, "", 0)), hot
}

func TestLookupOrCreateNewSession(t *testing.T) {
	repo := newFakeSessionRepo()
	m, _ := newTestManager(repo)
	uow := &fakeUow{sessions: repo}

	tenant := uuid.New()
	session, created, err := m.LookupOrCreate(context.Background(), uow, nil, tenant, nil, time.Now())
	if err != nil {
		t.Fatalf("LookupOrCreate: %v", err)
	}
	if !created {
		t.Fatal("a nil session id must create a fresh session")
	}
	if session.CurrentStage != string(funnel.StageGreeting) {
		t.Errorf("CurrentStage = %s, want greeting", session.CurrentStage)
	}
	if len(session.StageHistory) != 1 || session.StageHistory[0].Stage != session.CurrentStage {
		t.Error("current stage must equal the single open history entry")
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}
}

func TestLookupOrCreateHonorsClientID(t *testing.T) {
	repo := newFakeSessionRepo()
	m, _ := newTestManager(repo)
	uow := &fakeUow{sessions: repo}

	id := uuid.New()
	session, created, err := m.LookupOrCreate(context.Background(), uow, &id, uuid.New(), nil, time.Now())
	if err != nil {
		t.Fatalf("LookupOrCreate: %v", err)
	}
	if !created || session.Id != id {
		t.Errorf("created=%v id=%s, want a new session under the client id", created, session.Id)
	}
}

func TestLookupOrCreateServesHotCopy(t *testing.T) {
	repo := newFakeSessionRepo()
	m, hot := newTestManager(repo)
	uow := &fakeUow{sessions: repo}

	id := uuid.New()
	existing := &entity.Session{
		Id:           id,
		TenantId:     uuid.New(),
		CurrentStage: string(funnel.StageDiscovery),
		LastActiveAt: time.Now(),
	}
	hot.Save(existing)

	session, created, err := m.LookupOrCreate(context.Background(), uow, &id, existing.TenantId, nil, time.Now())
	if err != nil {
		t.Fatalf("LookupOrCreate: %v", err)
	}
	if created {
		t.Error("hot sessions must not be recreated")
	}
	if session != existing {
		t.Error("the hot copy must be returned, not a reload")
	}
	if repo.creates != 0 {
		t.Errorf("creates = %d, want 0", repo.creates)
	}
}

func TestLockSerializesTurns(t *testing.T) {
	repo := newFakeSessionRepo()
	m, _ := newTestManager(repo)

	id := uuid.New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(id)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50: per-session lock must serialize turns", counter)
	}
}

func TestSweepIdleRecoversExactlyOnce(t *testing.T) {
	repo := newFakeSessionRepo()
	m, hot := newTestManager(repo)

	idle := &entity.Session{
		Id:           uuid.New(),
		TenantId:     uuid.New(),
		CurrentStage: string(funnel.StageRecommendation),
		StageHistory: []entity.StageVisit{{Stage: string(funnel.StageRecommendation), EnteredAt: time.Now().Add(-2 * time.Hour)}},
		Context:      map[string]interface{}{},
		LastActiveAt: time.Now().Add(-2 * time.Hour),
	}
	hot.Save(idle)
	repo.sessions[idle.Id] = idle

	now := time.Now()
	m.sweepIdle(context.Background(), now)

	if idle.CurrentStage != string(funnel.StageDiscovery) {
		t.Fatalf("stage = %s, want discovery after idle recovery", idle.CurrentStage)
	}
	if repo.updates != 1 {
		t.Errorf("updates = %d, want 1", repo.updates)
	}

	// The session is still idle, but it now sits in its own recovery
	// stage: a second sweep must not touch it.
	m.sweepIdle(context.Background(), now.Add(time.Minute))
	if repo.updates != 1 {
		t.Errorf("updates = %d after second sweep, want 1", repo.updates)
	}
	if idle.CurrentStage != string(funnel.StageDiscovery) {
		t.Errorf("stage = %s after second sweep", idle.CurrentStage)
	}
}
