package walk

import (
	"time"

	"github.com/samber/lo"
)

// State is a point in the walk lifecycle:
// Start -> SessionOpen -> StepExecuting* -> (Succeeded | Failed) -> SessionClosed -> End.
type State string

const (
	StateStart         State = "start"
	StateSessionOpen   State = "session_open"
	StateStepExecuting State = "step_executing"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateSessionClosed State = "session_closed"
	StateEnd           State = "end"
)

// Outcome distinguishes an acted step from a benign skip and from a failure.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type StepResult struct {
	Index    int           `json:"index" yaml:"index"`
	Kind     StepKind      `json:"kind" yaml:"kind"`
	Step     string        `json:"step" yaml:"step"`
	Outcome  Outcome       `json:"outcome" yaml:"outcome"`
	Artifact string        `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

type CheckResult struct {
	Label  string `json:"label" yaml:"label"`
	Passed bool   `json:"passed" yaml:"passed"`
}

// Result describes one walk run. Err is nil when every step completed.
type Result struct {
	Walk          string        `json:"walk" yaml:"walk"`
	Driver        string        `json:"driver" yaml:"driver"`
	Transitions   []State       `json:"transitions" yaml:"transitions"`
	Steps         []StepResult  `json:"steps" yaml:"steps"`
	Artifacts     []string      `json:"artifacts" yaml:"artifacts"`
	ErrorArtifact string        `json:"errorArtifact,omitempty" yaml:"errorArtifact,omitempty"`
	Checks        []CheckResult `json:"checks,omitempty" yaml:"checks,omitempty"`
	PageErrors    []string      `json:"pageErrors,omitempty" yaml:"pageErrors,omitempty"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Err           error         `json:"-" yaml:"-"`
}

func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// State returns the latest state reached.
func (r *Result) State() State {
	if len(r.Transitions) == 0 {
		return StateStart
	}
	return r.Transitions[len(r.Transitions)-1]
}

// Skipped returns the steps whose optional element was absent.
func (r *Result) Skipped() []StepResult {
	return lo.Filter(r.Steps, func(s StepResult, _ int) bool {
		return s.Outcome == OutcomeSkipped
	})
}

func (r *Result) enter(s State) {
	// consecutive step executions collapse into one transition
	if s == StateStepExecuting && r.State() == StateStepExecuting {
		return
	}
	r.Transitions = append(r.Transitions, s)
}
