package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/pkg/llm"
)

type stubProvider struct {
	response string
	err      error
}

func (s *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.response, s.err
}

type stubTool struct {
	name     string
	results  []string
	errs     []error
	delay    time.Duration
	calls    int
	lastSeen StepInput
}

func (t *stubTool) Name() string { return t.name }

func (t *stubTool) Run(ctx context.Context, input StepInput) (string, error) {
	t.lastSeen = input
	call := t.calls
	t.calls++

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if call < len(t.errs) && t.errs[call] != nil {
		return "", t.errs[call]
	}
	if call < len(t.results) {
		return t.results[call], nil
	}
	return "ok", nil
}

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxSteps:    5,
		StepRetries: 1,
		PlanBudget:  time.Second,
	}
}

func newTestExecutor(provider llm.LLMProvider, tools []Tool) *Executor {
	return NewExecutor(provider, tools, testAgentConfig(), log.New(io.Discard, "", 0))
}

const twoStepPlanJSON = `{"steps": [
	{"goal": "relaxing tea", "tool": "search_products"},
	{"goal": "recommend something relaxing then something for pain", "tool": "respond"}
]}`

func TestDecomposeMultiStepGoal(t *testing.T) {
	provider := &stubProvider{response: twoStepPlanJSON}
	e := newTestExecutor(provider, nil)

	plan := e.Decompose(context.Background(), "I want something relaxing then something for pain", "llama3")
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Tool != ToolSearchProducts || plan.Steps[1].Tool != ToolRespond {
		t.Errorf("tools = %s, %s", plan.Steps[0].Tool, plan.Steps[1].Tool)
	}
	for _, step := range plan.Steps {
		if step.Status != StepPending {
			t.Errorf("step %q status = %s, want pending", step.Goal, step.Status)
		}
	}
}

func TestDecomposeMangledResponseFallsBack(t *testing.T) {
	provider := &stubProvider{response: "sorry, I can't do JSON today"}
	e := newTestExecutor(provider, nil)

	plan := e.Decompose(context.Background(), "find me a gift", "llama3")
	if len(plan.Steps) != 1 {
		t.Fatalf("steps = %d, want the single-step fallback", len(plan.Steps))
	}
	if plan.Steps[0].Tool != ToolRespond {
		t.Errorf("fallback tool = %s, want respond", plan.Steps[0].Tool)
	}
}

func TestDecomposeAppendsRespondStep(t *testing.T) {
	provider := &stubProvider{response: `{"steps": [{"goal": "relaxing tea", "tool": "search_products"}]}`}
	e := newTestExecutor(provider, nil)

	plan := e.Decompose(context.Background(), "find relaxing tea", "llama3")
	if last := plan.Steps[len(plan.Steps)-1]; last.Tool != ToolRespond {
		t.Errorf("last tool = %s, plans must end facing the user", last.Tool)
	}
}

func TestExecuteFeedsObservationsForward(t *testing.T) {
	search := &stubTool{name: ToolSearchProducts, results: []string{"Found 2 products"}}
	respond := &stubTool{name: ToolRespond, results: []string{"Here are my picks"}}
	e := newTestExecutor(&stubProvider{}, []Tool{search, respond})

	plan := &Plan{
		Goal:   "relaxing then pain relief",
		Status: PlanExecuting,
		Steps: []*Step{
			{Goal: "relaxing tea", Tool: ToolSearchProducts, Status: StepPending},
			{Goal: "summarize", Tool: ToolRespond, Status: StepPending},
		},
	}

	if err := e.Execute(context.Background(), plan, "llama3"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if plan.Status != PlanSucceeded {
		t.Errorf("plan status = %s", plan.Status)
	}
	if len(respond.lastSeen.Observations) != 1 || respond.lastSeen.Observations[0] != "Found 2 products" {
		t.Errorf("respond step saw observations %v", respond.lastSeen.Observations)
	}
	if respond.lastSeen.Model != "llama3" {
		t.Errorf("respond step saw model %q", respond.lastSeen.Model)
	}
}

func TestExecuteRetriesOnceThenSucceeds(t *testing.T) {
	flaky := &stubTool{
		name:    ToolRespond,
		errs:    []error{errors.New("transient")},
		results: []string{"", "recovered"},
	}
	e := newTestExecutor(&stubProvider{}, []Tool{flaky})

	plan := &Plan{Steps: []*Step{{Goal: "answer", Tool: ToolRespond, Status: StepPending}}}
	if err := e.Execute(context.Background(), plan, ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if flaky.calls != 2 {
		t.Errorf("calls = %d, want a single retry", flaky.calls)
	}
	if plan.Steps[0].Observation != "recovered" {
		t.Errorf("observation = %q", plan.Steps[0].Observation)
	}
}

func TestExecuteSecondFailureAbortsWithPartials(t *testing.T) {
	search := &stubTool{name: ToolSearchProducts, results: []string{"Found 1 product"}}
	broken := &stubTool{
		name: ToolRespond,
		errs: []error{errors.New("down"), errors.New("still down")},
	}
	e := newTestExecutor(&stubProvider{}, []Tool{search, broken})

	plan := &Plan{
		Steps: []*Step{
			{Goal: "search", Tool: ToolSearchProducts, Status: StepPending},
			{Goal: "answer", Tool: ToolRespond, Status: StepPending},
			{Goal: "never reached", Tool: ToolRespond, Status: StepPending},
		},
	}

	err := e.Execute(context.Background(), plan, "")
	if !errors.Is(err, apperror.ErrPlanAborted) {
		t.Fatalf("error = %v, want a plan abort", err)
	}
	var aborted *apperror.PlanAborted
	if !errors.As(err, &aborted) {
		t.Fatalf("error type = %T", err)
	}
	if len(aborted.Partial) != 1 || aborted.Partial[0] != "Found 1 product" {
		t.Errorf("partial results = %v", aborted.Partial)
	}
	if broken.calls != 2 {
		t.Errorf("calls = %d, want exactly one retry before giving up", broken.calls)
	}
	if plan.Steps[1].Status != StepFailed {
		t.Errorf("failed step status = %s", plan.Steps[1].Status)
	}
	if plan.Steps[2].Status != StepSkipped {
		t.Errorf("trailing step status = %s, want skipped", plan.Steps[2].Status)
	}
	if plan.Status != PlanFailed {
		t.Errorf("plan status = %s", plan.Status)
	}
}

func TestExecuteWallClockBudget(t *testing.T) {
	slow := &stubTool{name: ToolRespond, delay: 200 * time.Millisecond}
	cfg := testAgentConfig()
	cfg.PlanBudget = 50 * time.Millisecond
	e := NewExecutor(&stubProvider{}, []Tool{slow}, cfg, log.New(io.Discard, "", 0))

	plan := &Plan{
		Steps: []*Step{
			{Goal: "slow step", Tool: ToolRespond, Status: StepPending},
			{Goal: "never reached", Tool: ToolRespond, Status: StepPending},
		},
	}

	start := time.Now()
	err := e.Execute(context.Background(), plan, "")
	if !errors.Is(err, apperror.ErrPlanAborted) {
		t.Fatalf("error = %v, want a plan abort", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("budget is a hard ceiling, execution took %s", elapsed)
	}
	if plan.Status != PlanAborted && plan.Status != PlanFailed {
		t.Errorf("plan status = %s", plan.Status)
	}
}

func TestRunScenarioTwoStepPlan(t *testing.T) {
	provider := &stubProvider{response: twoStepPlanJSON}
	search := &stubTool{name: ToolSearchProducts, results: []string{"Found chamomile and willow bark"}}
	respond := &stubTool{name: ToolRespond, results: []string{"Try chamomile for relaxing and willow bark for pain."}}
	e := newTestExecutor(provider, []Tool{search, respond})

	plan, answer, err := e.Run(context.Background(), "I want something relaxing then something for pain", "llama3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if answer != "Try chamomile for relaxing and willow bark for pain." {
		t.Errorf("answer = %q", answer)
	}
	if plan.Status != PlanSucceeded {
		t.Errorf("plan status = %s", plan.Status)
	}
}
