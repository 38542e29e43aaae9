package funnel

import (
	"fmt"
	"log"
	"strings"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/constant"
	"ai-saleschat-be/internal/entity"
)

// Context keys starting with this prefix are stage-local scratch data
// and are cleared whenever the session exits a stage. Everything else
// is cumulative profile data and survives the whole session.
const transientContextPrefix = "stage."

// StageSpec declares one stage's behavior: where each signal leads,
// which context fields must be collected before a forward exit, and
// where an idle session is walked back to.
type StageSpec struct {
	Next           map[Signal]Stage
	RequiredToExit []string
	Recovery       Stage
}

// The transition table. Unmatched (stage, signal) pairs keep the
// session where it is. closed has no outgoing edges: a closed session
// only continues as a fresh greeting under a new session id.
var stageSpecs = map[Stage]StageSpec{
	StageGreeting: {
		Next: map[Signal]Stage{
			SignalExpressNeed:  StageDiscovery,
			SignalAskRecommend: StageDiscovery,
			SignalExit:         StageClosed,
		},
		Recovery: StageGreeting,
	},
	StageDiscovery: {
		Next: map[Signal]Stage{
			SignalAskRecommend: StageRecommendation,
			SignalObjection:    StageConsideration,
			SignalAddToCart:    StageCart,
			SignalExit:         StageClosed,
		},
		Recovery: StageDiscovery,
	},
	StageRecommendation: {
		Next: map[Signal]Stage{
			SignalAddToCart:   StageCart,
			SignalObjection:   StageConsideration,
			SignalExpressNeed: StageDiscovery,
			SignalExit:        StageClosed,
		},
		Recovery: StageDiscovery,
	},
	StageConsideration: {
		Next: map[Signal]Stage{
			SignalAddToCart:    StageCart,
			SignalAskRecommend: StageRecommendation,
			SignalExpressNeed:  StageDiscovery,
			SignalExit:         StageClosed,
		},
		Recovery: StageDiscovery,
	},
	StageCart: {
		Next: map[Signal]Stage{
			SignalBeginCheckout: StageCheckout,
			SignalAskRecommend:  StageRecommendation,
			SignalExpressNeed:   StageDiscovery,
			SignalExit:          StageClosed,
		},
		RequiredToExit: []string{constant.ContextKeyCartRef},
		Recovery:       StageDiscovery,
	},
	StageCheckout: {
		Next: map[Signal]Stage{
			SignalCompleteCheckout: StageClosed,
			SignalObjection:        StageConsideration,
			SignalExit:             StageClosed,
		},
		RequiredToExit: []string{constant.ContextKeyDeliveryAddress},
		Recovery:       StageDiscovery,
	},
	StageClosed: {},
}

// Machine drives sessions through the funnel. The transition table is
// fixed; only the idle timeouts come from configuration.
type Machine struct {
	timeouts map[Stage]time.Duration
	logger   *log.Logger
}

func NewMachine(cfg config.FunnelConfig, logger *log.Logger) *Machine {
	timeouts := make(map[Stage]time.Duration, len(cfg.StageTimeouts))
	for name, d := range cfg.StageTimeouts {
		timeouts[Stage(name)] = d
	}
	return &Machine{timeouts: timeouts, logger: logger}
}

// Evaluate resolves (current stage, signal) against the transition
// table. Unmatched signals return the current stage with no error. A
// mapped forward move with missing required context is rejected: the
// session stays put and the reason is safe to show the user.
func (m *Machine) Evaluate(session *entity.Session, signal Signal) (Stage, error) {
	current := Stage(session.CurrentStage)
	spec, ok := stageSpecs[current]
	if !ok {
		return current, &apperror.InvalidTransition{
			From:   session.CurrentStage,
			To:     session.CurrentStage,
			Reason: "unknown stage",
		}
	}

	next, ok := spec.Next[signal]
	if !ok || next == current {
		return current, nil
	}

	// Required fields gate forward moves only. Walking back toward
	// discovery or bailing out with an exit never needs collected data.
	// Completing checkout lands on closed but is still a forward exit.
	forward := signal == SignalCompleteCheckout ||
		(next != StageClosed && stageOrder(next) > stageOrder(current))
	if forward {
		for _, field := range spec.RequiredToExit {
			if !hasContextValue(session.Context, field) {
				return current, &apperror.InvalidTransition{
					From:   string(current),
					To:     string(next),
					Reason: fmt.Sprintf("missing required field: %s", field),
				}
			}
		}
	}

	return next, nil
}

// RequestTransition validates an explicit jump to a target stage, used
// by callers that name a destination instead of a signal. Unlisted
// targets are rejected with a structured reason.
func (m *Machine) RequestTransition(session *entity.Session, to Stage) error {
	current := Stage(session.CurrentStage)
	spec := stageSpecs[current]

	legal := false
	for _, next := range spec.Next {
		if next == to {
			legal = true
			break
		}
	}
	if !legal {
		return &apperror.InvalidTransition{
			From:   string(current),
			To:     string(to),
			Reason: fmt.Sprintf("no transition from %s to %s", current, to),
		}
	}

	if to != StageClosed {
		for _, field := range spec.RequiredToExit {
			if !hasContextValue(session.Context, field) {
				return &apperror.InvalidTransition{
					From:   string(current),
					To:     string(to),
					Reason: fmt.Sprintf("missing required field: %s", field),
				}
			}
		}
	}
	return nil
}

// Apply commits a stage change: closes the current history entry,
// opens the next one, and drops stage-local scratch context. Cumulative
// profile data stays. Calling Apply with the current stage only bumps
// activity.
func (m *Machine) Apply(session *entity.Session, next Stage, now time.Time, meta map[string]interface{}) {
	session.LastActiveAt = now

	if Stage(session.CurrentStage) == next {
		return
	}

	if n := len(session.StageHistory); n > 0 && session.StageHistory[n-1].ExitedAt == nil {
		session.StageHistory[n-1].ExitedAt = &now
	}
	session.StageHistory = append(session.StageHistory, entity.StageVisit{
		Stage:     string(next),
		EnteredAt: now,
		Meta:      meta,
	})

	for key := range session.Context {
		if strings.HasPrefix(key, transientContextPrefix) {
			delete(session.Context, key)
		}
	}

	m.logger.Printf("[FUNNEL] session %s: %s -> %s", session.Id, session.CurrentStage, next)
	session.CurrentStage = string(next)
}

// CheckIdle reports whether the session has sat in its stage past the
// configured timeout, and the recovery stage to walk it back to. Fires
// at most once: a session already in its recovery stage never moves
// again until real activity arrives.
func (m *Machine) CheckIdle(session *entity.Session, now time.Time) (Stage, bool) {
	current := Stage(session.CurrentStage)
	if current == StageClosed {
		return current, false
	}

	timeout, ok := m.timeouts[current]
	if !ok || timeout <= 0 {
		return current, false
	}

	recovery := stageSpecs[current].Recovery
	if recovery == "" || recovery == current {
		return current, false
	}

	if now.Sub(session.LastActiveAt) > timeout {
		return recovery, true
	}
	return current, false
}

// Timeout exposes the configured idle timeout for one stage.
func (m *Machine) Timeout(stage Stage) time.Duration {
	return m.timeouts[stage]
}

// ShortestTimeout returns the smallest configured idle timeout, or zero
// when no stage has one. Sweeps use it as the query cutoff.
func (m *Machine) ShortestTimeout() time.Duration {
	var shortest time.Duration
	for _, d := range m.timeouts {
		if d <= 0 {
			continue
		}
		if shortest == 0 || d < shortest {
			shortest = d
		}
	}
	return shortest
}

func stageOrder(s Stage) int {
	for i, known := range allStages {
		if s == known {
			return i
		}
	}
	return -1
}

func hasContextValue(ctx map[string]interface{}, key string) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx[key]
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return v != nil
}
