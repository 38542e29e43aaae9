package agent

import "time"

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type PlanStatus string

const (
	PlanExecuting PlanStatus = "executing"
	PlanSucceeded PlanStatus = "succeeded"
	PlanFailed    PlanStatus = "failed"
	PlanAborted   PlanStatus = "aborted"
)

// Step is one ordered action of a plan. Observation holds the tool or
// model output once the step has run.
type Step struct {
	Goal        string     `json:"goal"`
	Tool        string     `json:"tool"`
	Status      StepStatus `json:"status"`
	Observation string     `json:"observation,omitempty"`
	Attempts    int        `json:"attempts"`
}

// Plan is the decomposition of one multi-step user goal. It is owned
// by the turn that created it; persistence beyond the turn happens as
// stage history metadata for audit.
type Plan struct {
	Goal      string     `json:"goal"`
	Steps     []*Step    `json:"steps"`
	Status    PlanStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Observations collects the outputs of every step that produced one,
// in execution order. This is the partial result set surfaced when a
// plan fails or runs out of budget.
func (p *Plan) Observations() []string {
	out := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		if step.Observation != "" {
			out = append(out, step.Observation)
		}
	}
	return out
}
