package ratelimit

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/entity"

	"github.com/google/uuid"
)

func testClasses() map[string]config.CredentialClass {
	return map[string]config.CredentialClass{
		"otp": {
			Window:       60 * time.Minute,
			MaxRequests:  5,
			BaseBlock:    5 * time.Minute,
			MaxBlock:     24 * time.Hour,
			ViolationCap: 6,
			FailMode:     config.FailClosed,
		},
		"chat": {
			Window:       time.Minute,
			MaxRequests:  3,
			BaseBlock:    time.Minute,
			MaxBlock:     time.Hour,
			ViolationCap: 4,
			FailMode:     config.FailOpen,
		},
	}
}

func newTestLimiter(store Store) *Limiter {
	return NewLimiter(store, testClasses(), log.New(io.Discard, "", 0))
}

func TestAdmitOTPScenario(t *testing.T) {
	// 6 OTP requests within the window when max=5: the 6th is denied
	// with retry_after > 0; once the block passes the next succeeds.
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d, err := limiter.Admit(ctx, "+15551234567", "otp", now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	sixth, err := limiter.Admit(ctx, "+15551234567", "otp", now.Add(5*time.Minute))
	if sixth.Allowed {
		t.Fatal("6th request should be denied")
	}
	if sixth.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want > 0", sixth.RetryAfter)
	}
	var denied *apperror.AdmissionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("error = %v, want AdmissionDenied", err)
	}

	// After blocked_until passes, the 7th succeeds and resets the counter.
	after := now.Add(5 * time.Minute).Add(sixth.RetryAfter).Add(time.Second)
	seventh, err := limiter.Admit(ctx, "+15551234567", "otp", after)
	if err != nil {
		t.Fatalf("7th request: unexpected error %v", err)
	}
	if !seventh.Allowed {
		t.Fatal("7th request should be allowed after block expiry")
	}
	if seventh.Remaining != 4 {
		t.Fatalf("Remaining = %d, want 4 (counter reset)", seventh.Remaining)
	}
}

func TestRetryAfterNonDecreasing(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := limiter.Admit(ctx, "abuser", "chat", now); err != nil {
			t.Fatalf("warmup %d: %v", i, err)
		}
	}

	// Every denial at the same instant must report the same or a larger
	// retry_after than the one before it.
	var last time.Duration
	for i := 0; i < 5; i++ {
		d, _ := limiter.Admit(ctx, "abuser", "chat", now)
		if d.Allowed {
			t.Fatalf("call %d should be denied", i)
		}
		if d.RetryAfter < last {
			t.Fatalf("retry_after decreased: %v -> %v", last, d.RetryAfter)
		}
		last = d.RetryAfter
	}
}

func TestBackoffGrowsGeometrically(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	overflow := func(at time.Time) Decision {
		var d Decision
		for i := 0; i < 4; i++ {
			d, _ = limiter.Admit(ctx, "repeat", "chat", at)
		}
		return d
	}

	first := overflow(now)
	if first.Allowed || first.RetryAfter != time.Minute {
		t.Fatalf("first violation: got %+v, want 1m block", first)
	}

	// Second violation, after the first block and window elapse.
	second := overflow(now.Add(3 * time.Minute))
	if second.Allowed || second.RetryAfter != 2*time.Minute {
		t.Fatalf("second violation: got %+v, want 2m block", second)
	}
}

func TestWindowReset(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		limiter.Admit(ctx, "steady", "chat", now)
	}

	d, err := limiter.Admit(ctx, "steady", "chat", now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatal("request after window elapse should be allowed")
	}
	if d.Remaining != 2 {
		t.Fatalf("Remaining = %d, want 2", d.Remaining)
	}
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error) {
	return nil, errors.New("store down")
}
func (failingStore) Put(ctx context.Context, record *entity.RateLimitRecord) error {
	return errors.New("store down")
}
func (failingStore) Delete(ctx context.Context, identifier string) error {
	return errors.New("store down")
}
func (failingStore) List(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	return nil, errors.New("store down")
}

func TestFailModes(t *testing.T) {
	limiter := newTestLimiter(failingStore{})
	ctx := context.Background()
	now := time.Now()

	// chat is fail-open: allowed, no error.
	d, err := limiter.Admit(ctx, "anyone", "chat", now)
	if err != nil || !d.Allowed {
		t.Fatalf("fail-open: got (%+v, %v), want allowed", d, err)
	}

	// otp is fail-closed: denied with the store error surfaced.
	d, err = limiter.Admit(ctx, "anyone", "otp", now)
	if err == nil || d.Allowed {
		t.Fatalf("fail-closed: got (%+v, %v), want denied with error", d, err)
	}
}

func TestLockPoolStaysBounded(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Now()

	// Admitting many distinct identifiers must not allocate a lock per
	// identifier: every lockFor result comes from the fixed stripe set,
	// and the same identifier always maps to the same stripe.
	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10_000; i++ {
		id := uuid.NewString()
		if _, err := limiter.Admit(ctx, id, "chat", now); err != nil {
			t.Fatalf("identifier %d: %v", i, err)
		}
		if limiter.lockFor(id) != limiter.lockFor(id) {
			t.Fatalf("identifier %q maps to different locks across calls", id)
		}
		seen[limiter.lockFor(id)] = struct{}{}
	}
	if len(seen) > lockShards {
		t.Fatalf("lock pool grew to %d entries, want at most %d", len(seen), lockShards)
	}
}

func TestConcurrentAdmitsAreSerialized(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	allowed := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := limiter.Admit(ctx, "racer", "chat", now)
			allowed <- d.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("allowed %d of 20 concurrent requests, want exactly 3", count)
	}
}
