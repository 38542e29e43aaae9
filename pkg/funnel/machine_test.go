package funnel

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/constant"
	"ai-saleschat-be/internal/entity"

	"github.com/google/uuid"
)

func newTestMachine() *Machine {
	cfg := config.FunnelConfig{
		StageTimeouts: map[string]time.Duration{
			"greeting":       10 * time.Minute,
			"discovery":      30 * time.Minute,
			"recommendation": 30 * time.Minute,
			"consideration":  45 * time.Minute,
			"cart":           time.Hour,
			"checkout":       30 * time.Minute,
		},
	}
	return NewMachine(cfg, log.New(io.Discard, "", 0))
}

func newSessionInStage(stage Stage) *entity.Session {
	now := time.Now()
	return &entity.Session{
		Id:           uuid.New(),
		TenantId:     uuid.New(),
		CurrentStage: string(stage),
		StageHistory: []entity.StageVisit{{Stage: string(stage), EnteredAt: now}},
		Context:      map[string]interface{}{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func TestDetectSignal(t *testing.T) {
	tests := []struct {
		message string
		want    Signal
	}{
		{"hello there", SignalNone},
		{"I want something relaxing", SignalExpressNeed},
		{"can you recommend a tea for sleep?", SignalAskRecommend},
		{"that's too expensive for me", SignalObjection},
		{"ok, add it to my cart", SignalAddToCart},
		{"let's checkout", SignalBeginCheckout},
		{"please place my order", SignalCompleteCheckout},
		{"goodbye", SignalExit},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := DetectSignal(tt.message); got != tt.want {
				t.Errorf("DetectSignal(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestGreetingOnlyMovesOnMappedSignals(t *testing.T) {
	m := newTestMachine()

	tests := []struct {
		signal Signal
		want   Stage
	}{
		{SignalExpressNeed, StageDiscovery},
		{SignalAskRecommend, StageDiscovery},
		{SignalExit, StageClosed},
		{SignalNone, StageGreeting},
		{SignalObjection, StageGreeting},
		{SignalAddToCart, StageGreeting},
		{SignalBeginCheckout, StageGreeting},
		{SignalCompleteCheckout, StageGreeting},
	}

	for _, tt := range tests {
		t.Run(string(tt.signal), func(t *testing.T) {
			session := newSessionInStage(StageGreeting)
			next, err := m.Evaluate(session, tt.signal)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if next != tt.want {
				t.Errorf("next = %s, want %s", next, tt.want)
			}
		})
	}
}

func TestCartExitRequiresCartRef(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageCart)

	_, err := m.Evaluate(session, SignalBeginCheckout)
	if err == nil {
		t.Fatal("checkout without a cart reference must be rejected")
	}
	if !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("error = %v, want an invalid transition", err)
	}
	var it *apperror.InvalidTransition
	if !errors.As(err, &it) {
		t.Fatalf("error type = %T", err)
	}
	if it.Reason != "missing required field: cart_ref" {
		t.Errorf("Reason = %q", it.Reason)
	}
	if session.CurrentStage != string(StageCart) {
		t.Error("a rejected transition must leave the session where it was")
	}

	session.Context[constant.ContextKeyCartRef] = "cart-789"
	next, err := m.Evaluate(session, SignalBeginCheckout)
	if err != nil {
		t.Fatalf("Evaluate with cart_ref: %v", err)
	}
	if next != StageCheckout {
		t.Errorf("next = %s, want checkout", next)
	}
}

func TestCompleteCheckoutRequiresDeliveryAddress(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageCheckout)

	_, err := m.Evaluate(session, SignalCompleteCheckout)
	var it *apperror.InvalidTransition
	if !errors.As(err, &it) {
		t.Fatalf("expected an invalid transition, got %v", err)
	}
	if it.Reason != "missing required field: delivery_address" {
		t.Errorf("Reason = %q", it.Reason)
	}

	// Exit needs nothing: the user can always walk away.
	next, err := m.Evaluate(session, SignalExit)
	if err != nil {
		t.Fatalf("Evaluate exit: %v", err)
	}
	if next != StageClosed {
		t.Errorf("next = %s, want closed", next)
	}

	session.Context[constant.ContextKeyDeliveryAddress] = "12 Main St"
	next, err = m.Evaluate(session, SignalCompleteCheckout)
	if err != nil {
		t.Fatalf("Evaluate with address: %v", err)
	}
	if next != StageClosed {
		t.Errorf("next = %s, want closed", next)
	}
}

func TestApplyMaintainsHistoryAndClearsTransients(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageGreeting)
	session.Context["preferences"] = "relaxing"
	session.Context["stage.prompted_categories"] = []string{"herbal"}

	now := time.Now()
	m.Apply(session, StageDiscovery, now, nil)

	if session.CurrentStage != string(StageDiscovery) {
		t.Fatalf("CurrentStage = %s", session.CurrentStage)
	}
	if len(session.StageHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(session.StageHistory))
	}
	if session.StageHistory[0].ExitedAt == nil {
		t.Error("exited stage must record its exit time")
	}
	if last := session.StageHistory[1]; last.Stage != session.CurrentStage || last.ExitedAt != nil {
		t.Error("current stage must equal the open last history entry")
	}
	if _, ok := session.Context["stage.prompted_categories"]; ok {
		t.Error("stage-local context must be cleared on exit")
	}
	if session.Context["preferences"] != "relaxing" {
		t.Error("profile context must survive stage exits")
	}
}

func TestApplySameStageOnlyBumpsActivity(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageDiscovery)
	before := session.LastActiveAt

	m.Apply(session, StageDiscovery, before.Add(time.Minute), nil)

	if len(session.StageHistory) != 1 {
		t.Errorf("history length = %d, want 1", len(session.StageHistory))
	}
	if !session.LastActiveAt.After(before) {
		t.Error("activity timestamp must advance")
	}
}

func TestIdleRecoveryFiresExactlyOnce(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageCheckout)
	session.LastActiveAt = time.Now().Add(-2 * time.Hour)

	now := time.Now()
	recovery, fired := m.CheckIdle(session, now)
	if !fired {
		t.Fatal("an idle checkout session must be walked back")
	}
	if recovery != StageDiscovery {
		t.Fatalf("recovery = %s, want discovery", recovery)
	}
	m.Apply(session, recovery, now, map[string]interface{}{"idle_recovery": true})

	// The session now sits in its own recovery stage, so a second sweep
	// must leave it alone even if it stays idle.
	session.LastActiveAt = now.Add(-2 * time.Hour)
	if _, fired := m.CheckIdle(session, now); fired {
		t.Error("recovery must not fire a second time")
	}
}

func TestIdleGreetingStaysPut(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageGreeting)
	session.LastActiveAt = time.Now().Add(-time.Hour)

	if _, fired := m.CheckIdle(session, time.Now()); fired {
		t.Error("greeting recovers to itself, so idleness must not move it")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := newTestMachine()
	session := newSessionInStage(StageClosed)

	for _, signal := range []Signal{SignalExpressNeed, SignalAddToCart, SignalBeginCheckout, SignalExit} {
		next, err := m.Evaluate(session, signal)
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", signal, err)
		}
		if next != StageClosed {
			t.Errorf("signal %s moved a closed session to %s", signal, next)
		}
	}

	if err := m.RequestTransition(session, StageGreeting); err == nil {
		t.Error("explicit jumps out of closed must be rejected")
	}

	session.LastActiveAt = time.Now().Add(-24 * time.Hour)
	if _, fired := m.CheckIdle(session, time.Now()); fired {
		t.Error("closed sessions are exempt from idle recovery")
	}
}
