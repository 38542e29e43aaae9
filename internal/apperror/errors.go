package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel categories for errors.Is checks across layers.
var (
	ErrAdmissionDenied         = errors.New("admission denied")
	ErrInvalidTransition       = errors.New("invalid stage transition")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrPlanAborted             = errors.New("plan aborted")
	ErrCacheBackendUnavailable = errors.New("cache backend unavailable")
	ErrSessionClosed           = errors.New("session closed")
)

// AdmissionDenied is returned when the rate limiter rejects a request.
// RetryAfter tells the caller when the identifier becomes eligible again.
type AdmissionDenied struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *AdmissionDenied) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *AdmissionDenied) Unwrap() error { return ErrAdmissionDenied }

// InvalidTransition is returned when the state machine rejects a stage
// jump. Reason is human-readable and safe to surface to the end user.
type InvalidTransition struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *InvalidTransition) Unwrap() error { return ErrInvalidTransition }

// UpstreamUnavailable wraps model/search backend failures. The router
// fallback is tried before this ever reaches the user.
type UpstreamUnavailable struct {
	Upstream string
	Err      error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return ErrUpstreamUnavailable }

// PlanAborted carries the partial results of an agent plan that ran out
// of budget or retries. Explanation is already user-facing language.
type PlanAborted struct {
	Explanation string
	Partial     []string
}

func (e *PlanAborted) Error() string { return e.Explanation }

func (e *PlanAborted) Unwrap() error { return ErrPlanAborted }
