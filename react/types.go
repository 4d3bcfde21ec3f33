// Package react provides the ReAct planner.
//
// Contains the types used for run configuration, decisions, and results.
package react

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mkallio/loom/llm"
	"github.com/mkallio/loom/model"
)

// ErrMalformedStep indicates the endpoint response could not be parsed
// into a well-formed step even after corrective retries.
var ErrMalformedStep = errors.New("react: malformed step")

// Outcome is the terminal state of one run. Every run ends in exactly
// one of these.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeStepBudgetExceeded
	OutcomeCancelled
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeStepBudgetExceeded:
		return "step_budget_exceeded"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds planner configuration. The zero value is usable: budgets
// fall back to defaults.
type Config struct {
	// SystemPrompt guides the planner's behavior. A default prompt is
	// used when empty.
	SystemPrompt string

	// StepBudget is the maximum number of reason-act-observe cycles.
	// Default 5.
	StepBudget int

	// MaxParseRetries bounds corrective retries for malformed endpoint
	// output. Distinct from the step budget. Default 3.
	MaxParseRetries int

	// CallTimeout applies per endpoint or tool call, not per run.
	// Zero means no per-call timeout.
	CallTimeout time.Duration

	// Retry governs backoff for transient endpoint failures.
	Retry llm.RetryPolicy
}

const (
	defaultStepBudget      = 5
	defaultMaxParseRetries = 3
)

func (c Config) stepBudget() int {
	if c.StepBudget <= 0 {
		return defaultStepBudget
	}
	return c.StepBudget
}

func (c Config) maxParseRetries() int {
	if c.MaxParseRetries <= 0 {
		return defaultMaxParseRetries
	}
	return c.MaxParseRetries
}

// decision is the parsed form of one endpoint response.
type decision struct {
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input,omitempty"`
}

// wellFormed reports whether the decision satisfies the step shape:
// non-empty thought and an action that is Finish or a registered tool.
func (d decision) wellFormed(isRegistered func(string) bool) bool {
	if d.Thought == "" || d.Action == "" {
		return false
	}
	return d.Action == model.FinishAction || isRegistered(d.Action)
}

// finalAnswer renders the Finish action's input as the final answer.
func (d decision) finalAnswer() string {
	if len(d.ActionInput) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.ActionInput, &s); err == nil {
		return s
	}
	return string(d.ActionInput)
}

// Result is what a run produced.
type Result struct {
	RunID         string
	FinalAnswer   string
	Trajectory    model.Trajectory
	Outcome       Outcome
	Err           error
	Usage         model.TokenUsage
	EndpointCalls int
}
