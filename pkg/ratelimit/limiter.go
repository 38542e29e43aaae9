package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/entity"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Limiter gates inbound requests per identifier within a sliding
// window. Repeated violations grow the block duration geometrically
// (base * 2^violations) up to the class cap.
// lockShards bounds the keyed-mutex pool. Identifiers hash onto a
// fixed stripe set, so memory stays constant no matter how many
// distinct identifiers pass through.
const lockShards = 256

type Limiter struct {
	store   Store
	classes map[string]config.CredentialClass
	logger  *log.Logger

	// Striped mutexes make check-and-increment atomic per identifier.
	// Two identifiers may share a stripe and serialize needlessly;
	// correctness only needs same-identifier exclusion.
	locks [lockShards]sync.Mutex
}

func NewLimiter(store Store, classes map[string]config.CredentialClass, logger *log.Logger) *Limiter {
	return &Limiter{
		store:   store,
		classes: classes,
		logger:  logger,
	}
}

func (l *Limiter) lockFor(identifier string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(identifier))
	return &l.locks[h.Sum32()%lockShards]
}

// Admit runs the admission check for one identifier under the limits of
// its credential class. When the backing store is unavailable the class
// fail mode decides: fail-open allows the request, fail-closed denies it
// and surfaces the store error.
func (l *Limiter) Admit(ctx context.Context, identifier, class string, now time.Time) (Decision, error) {
	spec, ok := l.classes[class]
	if !ok {
		return Decision{}, fmt.Errorf("unknown credential class: %s", class)
	}

	keyLock := l.lockFor(identifier)
	keyLock.Lock()
	defer keyLock.Unlock()

	record, err := l.store.Get(ctx, identifier)
	if err != nil {
		return l.failDecision(identifier, class, spec, err)
	}

	// First request for this identifier: open a window and allow.
	if record == nil {
		record = &entity.RateLimitRecord{
			Identifier:   identifier,
			WindowStart:  now,
			RequestCount: 1,
			UpdatedAt:    now,
		}
		if err := l.store.Put(ctx, record); err != nil {
			return l.failDecision(identifier, class, spec, err)
		}
		return Decision{Allowed: true, Remaining: spec.MaxRequests - 1}, nil
	}

	// Active block trumps everything, including a fresh window.
	if record.BlockedUntil != nil && record.BlockedUntil.After(now) {
		retryAfter := record.BlockedUntil.Sub(now)
		l.logger.Printf("[RATELIMIT] %s denied, blocked for %s (violations=%d)",
			identifier, retryAfter.Round(time.Second), record.Violations)
		return Decision{Allowed: false, RetryAfter: retryAfter},
			&apperror.AdmissionDenied{Identifier: identifier, RetryAfter: retryAfter}
	}

	// Expired block or elapsed window: reset the counter, keep the
	// violation history so repeat offenders climb the backoff curve.
	if (record.BlockedUntil != nil && !record.BlockedUntil.After(now)) ||
		now.Sub(record.WindowStart) >= spec.Window {
		record.WindowStart = now
		record.RequestCount = 1
		record.BlockedUntil = nil
		record.UpdatedAt = now
		if err := l.store.Put(ctx, record); err != nil {
			return l.failDecision(identifier, class, spec, err)
		}
		return Decision{Allowed: true, Remaining: spec.MaxRequests - 1}, nil
	}

	record.RequestCount++
	record.UpdatedAt = now

	if record.RequestCount > spec.MaxRequests {
		record.Violations++
		blockFor := l.blockDuration(spec, record.Violations)
		until := now.Add(blockFor)
		record.BlockedUntil = &until
		if err := l.store.Put(ctx, record); err != nil {
			return l.failDecision(identifier, class, spec, err)
		}
		l.logger.Printf("[RATELIMIT] %s exceeded %d/%s, blocking %s (violation #%d)",
			identifier, spec.MaxRequests, spec.Window, blockFor, record.Violations)
		return Decision{Allowed: false, RetryAfter: blockFor},
			&apperror.AdmissionDenied{Identifier: identifier, RetryAfter: blockFor}
	}

	if err := l.store.Put(ctx, record); err != nil {
		return l.failDecision(identifier, class, spec, err)
	}
	return Decision{Allowed: true, Remaining: spec.MaxRequests - record.RequestCount}, nil
}

// blockDuration is base * 2^(violations-1) capped at both the violation
// cap and the absolute max block.
func (l *Limiter) blockDuration(spec config.CredentialClass, violations int) time.Duration {
	exp := violations - 1
	if exp > spec.ViolationCap {
		exp = spec.ViolationCap
	}
	d := spec.BaseBlock << uint(exp)
	if d > spec.MaxBlock {
		d = spec.MaxBlock
	}
	return d
}

func (l *Limiter) failDecision(identifier, class string, spec config.CredentialClass, cause error) (Decision, error) {
	if spec.FailMode == config.FailOpen {
		l.logger.Printf("[RATELIMIT] store unavailable, fail-open for class %s: %v", class, cause)
		return Decision{Allowed: true}, nil
	}
	l.logger.Printf("[RATELIMIT] store unavailable, fail-closed for class %s: %v", class, cause)
	return Decision{Allowed: false}, fmt.Errorf("rate limit store unavailable: %w", cause)
}

// Inspect exposes the current records for the admin surface.
func (l *Limiter) Inspect(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	return l.store.List(ctx)
}

// Reset clears one identifier's record, an operator escape hatch.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	keyLock := l.lockFor(identifier)
	keyLock.Lock()
	defer keyLock.Unlock()
	return l.store.Delete(ctx, identifier)
}
