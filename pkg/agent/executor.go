package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/pkg/llm"
)

// Executor handles requests the router flagged as multi-step. It
// decomposes the goal into a plan via a model call, then runs the
// steps strictly in order: later steps may depend on earlier
// observations, so there is no parallelism here.
type Executor struct {
	provider llm.LLMProvider
	tools    map[string]Tool
	cfg      config.AgentConfig
	logger   *log.Logger
}

func NewExecutor(provider llm.LLMProvider, tools []Tool, cfg config.AgentConfig, logger *log.Logger) *Executor {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return &Executor{
		provider: provider,
		tools:    byName,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run decomposes the goal, executes the plan under the wall-clock
// budget, and returns the plan plus the final answer. When the plan
// fails or runs out of budget the error is a PlanAborted carrying the
// partial observations and a user-facing explanation.
func (e *Executor) Run(ctx context.Context, goal, model string) (*Plan, string, error) {
	plan := e.Decompose(ctx, goal, model)

	if err := e.Execute(ctx, plan, model); err != nil {
		return plan, "", err
	}

	// The final answer is the last observation; plans end with a
	// respond step so this is the synthesized reply.
	observations := plan.Observations()
	if len(observations) == 0 {
		return plan, "", &apperror.PlanAborted{
			Explanation: "I could not produce any results for that request.",
		}
	}
	return plan, observations[len(observations)-1], nil
}

const decomposePromptFormat = `You are a planning assistant for a sales chat agent.
Break the user's goal into at most %d ordered steps.
Each step uses exactly one tool:
- "search_products": look up products in the catalog. The goal is the search query.
- "respond": compose an answer for the user from the results so far.

The last step must always be a "respond" step.

Respond with ONLY valid JSON in this exact structure:
{"steps": [{"goal": "step description", "tool": "search_products"}]}

User goal: %s`

// Decompose turns a goal into an ordered plan via a model call. A
// response the model mangles falls back to a single respond step
// rather than failing the turn.
func (e *Executor) Decompose(ctx context.Context, goal, model string) *Plan {
	plan := &Plan{
		Goal:      goal,
		Status:    PlanExecuting,
		CreatedAt: time.Now(),
	}

	prompt := fmt.Sprintf(decomposePromptFormat, e.cfg.MaxSteps, goal)
	opts := []llm.Option{llm.WithTemperature(0.1)}
	if model != "" {
		opts = append(opts, llm.WithModel(model))
	}

	response, err := e.provider.Generate(ctx, prompt, opts...)
	if err != nil {
		e.logger.Printf("[AGENT] decomposition call failed, falling back to single step: %v", err)
		plan.Steps = []*Step{{Goal: goal, Tool: ToolRespond, Status: StepPending}}
		return plan
	}

	steps, err := parseSteps(response)
	if err != nil || len(steps) == 0 {
		e.logger.Printf("[AGENT] could not parse plan, falling back to single step: %v", err)
		plan.Steps = []*Step{{Goal: goal, Tool: ToolRespond, Status: StepPending}}
		return plan
	}

	if len(steps) > e.cfg.MaxSteps {
		steps = steps[:e.cfg.MaxSteps]
	}
	// Guarantee the plan ends facing the user.
	if steps[len(steps)-1].Tool != ToolRespond {
		steps = append(steps, &Step{Goal: "Summarize the results for the user", Tool: ToolRespond})
	}
	for _, step := range steps {
		step.Status = StepPending
	}
	plan.Steps = steps

	e.logger.Printf("[AGENT] decomposed goal into %d steps", len(plan.Steps))
	return plan
}

// Execute runs the plan's steps in order under the wall-clock budget.
// Each step gets one retry with the same inputs; a second failure, or
// the budget expiring, aborts the remainder and surfaces the partial
// observations instead of an opaque error.
func (e *Executor) Execute(ctx context.Context, plan *Plan, model string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PlanBudget)
	defer cancel()

	for i, step := range plan.Steps {
		if ctx.Err() != nil {
			e.skipFrom(plan, i)
			plan.Status = PlanAborted
			return &apperror.PlanAborted{
				Explanation: "I ran out of time before finishing every step. Here is what I found so far.",
				Partial:     plan.Observations(),
			}
		}

		tool, ok := e.tools[step.Tool]
		if !ok {
			step.Status = StepSkipped
			e.logger.Printf("[AGENT] step %d wants unknown tool %q, skipping", i+1, step.Tool)
			continue
		}

		step.Status = StepRunning
		input := StepInput{Goal: step.Goal, Observations: plan.Observations(), Model: model}

		observation, err := e.runWithRetry(ctx, tool, step, input)
		if err != nil {
			step.Status = StepFailed
			e.skipFrom(plan, i+1)
			if errors.Is(err, context.DeadlineExceeded) {
				plan.Status = PlanAborted
				return &apperror.PlanAborted{
					Explanation: "I ran out of time before finishing every step. Here is what I found so far.",
					Partial:     plan.Observations(),
				}
			}
			plan.Status = PlanFailed
			return &apperror.PlanAborted{
				Explanation: fmt.Sprintf("I could not complete the step %q. Here is what I found before that.", step.Goal),
				Partial:     plan.Observations(),
			}
		}

		step.Observation = observation
		step.Status = StepSucceeded
		e.logger.Printf("[AGENT] step %d/%d (%s) succeeded", i+1, len(plan.Steps), step.Tool)
	}

	plan.Status = PlanSucceeded
	return nil
}

func (e *Executor) runWithRetry(ctx context.Context, tool Tool, step *Step, input StepInput) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.StepRetries; attempt++ {
		step.Attempts++
		observation, err := tool.Run(ctx, input)
		if err == nil {
			return observation, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Printf("[AGENT] step %q attempt %d failed: %v", step.Goal, step.Attempts, err)
	}
	return "", lastErr
}

func (e *Executor) skipFrom(plan *Plan, index int) {
	for _, step := range plan.Steps[index:] {
		if step.Status == StepPending || step.Status == StepRunning {
			step.Status = StepSkipped
		}
	}
}

func parseSteps(response string) ([]*Step, error) {
	var parsed struct {
		Steps []*Step `json:"steps"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return parsed.Steps, nil
}

// extractJSON isolates the JSON object from a response that may wrap
// it in prose or code fences.
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}
