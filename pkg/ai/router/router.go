package router

import (
	"log"
	"sync"
)

// Config is the routing policy. It is reloadable at runtime through
// the ops surface, so the Router guards it with a lock.
type Config struct {
	DefaultModel string
	// PremiumModel serves the categories that benefit from a stronger
	// model, and long messages.
	PremiumModel string
	// CategoryModels overrides the model per detected category; absent
	// categories fall through to the default/premium split.
	CategoryModels map[Category]string
	// Messages at or past this length route to the premium model even
	// for plain Q&A.
	LongMessageChars int
}

// Decision is the routed outcome for one request. The router never
// checks model availability: it hands back a primary and a fallback
// and the caller retries against the fallback on upstream errors.
type Decision struct {
	Primary   string  `json:"primary"`
	Fallback  string  `json:"fallback"`
	MultiStep bool    `json:"multi_step"`
	Signals   Signals `json:"signals"`
	Reason    string  `json:"reason"`
}

// Router picks which model handles a request from deterministic
// signals. Same request, same session context, same config: same
// decision.
type Router struct {
	mu     sync.RWMutex
	config Config
	logger *log.Logger
}

func NewRouter(config Config, logger *log.Logger) *Router {
	return &Router{config: config, logger: logger}
}

// Route decides the model for one message. Tie-break order: an
// explicit session override always wins, then the most specific
// category match, then the length band, then the configured default.
func (r *Router) Route(message string, sessionContext map[string]interface{}) Decision {
	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	signals := ExtractSignals(message, sessionContext)

	decision := Decision{
		MultiStep: signals.MultiStep,
		Signals:   signals,
	}

	switch {
	case signals.Override != "":
		decision.Primary = signals.Override
		decision.Fallback = cfg.DefaultModel
		decision.Reason = "session override"

	case cfg.CategoryModels[signals.Category] != "":
		decision.Primary = cfg.CategoryModels[signals.Category]
		decision.Fallback = cfg.DefaultModel
		decision.Reason = "category " + string(signals.Category)

	case signals.Category == CategoryReasoning || signals.Category == CategoryCode || signals.Category == CategoryAnalysis:
		decision.Primary = cfg.PremiumModel
		decision.Fallback = cfg.DefaultModel
		decision.Reason = "heavy category " + string(signals.Category)

	case cfg.LongMessageChars > 0 && signals.Length >= cfg.LongMessageChars:
		decision.Primary = cfg.PremiumModel
		decision.Fallback = cfg.DefaultModel
		decision.Reason = "long message"

	default:
		decision.Primary = cfg.DefaultModel
		decision.Fallback = cfg.PremiumModel
		decision.Reason = "default"
	}

	r.logger.Printf("[ROUTER] %s -> %s (fallback %s, multi_step=%v, len=%d, category=%s, override=%q)",
		decision.Reason, decision.Primary, decision.Fallback,
		signals.MultiStep, signals.Length, signals.Category, signals.Override)

	return decision
}

// Reload swaps the routing policy in place. In-flight decisions keep
// the config they read; new requests see the new policy.
func (r *Router) Reload(config Config) {
	r.mu.Lock()
	r.config = config
	r.mu.Unlock()
	r.logger.Printf("[ROUTER] routing config reloaded: default=%s premium=%s categories=%d",
		config.DefaultModel, config.PremiumModel, len(config.CategoryModels))
}

// Snapshot returns the active policy for the admin surface.
func (r *Router) Snapshot() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}
