// Package orchestrate provides the multi-role pipeline with a bounded
// revision loop.
//
// Types used by the orchestrator and its roles.
package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/mkallio/loom/model"
)

// TaskContext is the shared state threaded through one pipeline run.
// Owned exclusively by the orchestrator for the duration of the run;
// never shared across concurrent runs.
type TaskContext struct {
	Goal          string
	Subtasks      []string
	Artifacts     map[string]string
	ReviewNotes   []string
	RevisionCount int
}

// Review is the reviewer's verdict over the collected artifacts.
type Review struct {
	Accept bool     `json:"accept"`
	Issues []string `json:"issues"`
}

// PlannerFunc decomposes a goal into ordered subtasks.
type PlannerFunc func(ctx context.Context, goal string) ([]string, error)

// WorkerFunc produces a draft output for one subtask. Review notes from
// prior revisions are passed so a re-dispatched worker can address them.
type WorkerFunc func(ctx context.Context, subtask string, reviewNotes []string) (string, error)

// ReviewerFunc evaluates all current artifacts.
type ReviewerFunc func(ctx context.Context, task *TaskContext) (Review, error)

// Worker is a named pipeline stage with declared specialty tags.
// Subtasks are routed to the worker whose tag matches; the first worker
// is the default when nothing matches.
type Worker struct {
	Name        string
	Specialties []string
	Run         WorkerFunc
}

// Outcome is the terminal state of one pipeline run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAcceptedWithReservations
	OutcomeStageFailed
	OutcomeCancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAcceptedWithReservations:
		return "accepted_with_reservations"
	case OutcomeStageFailed:
		return "stage_failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StageError is a pipeline abort caused by a role failing twice in a row.
type StageError struct {
	Role  string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Role, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Result is what a pipeline run produced. Issues carries the unresolved
// reviewer issues when the outcome is AcceptedWithReservations. Usage
// and EndpointCalls are populated when the orchestrator has a meter.
type Result struct {
	PipelineID    string
	Artifacts     map[string]string
	Subtasks      []string
	ReviewNotes   []string
	RevisionCount int
	Issues        []string
	Outcome       Outcome
	Err           error
	Usage         model.TokenUsage
	EndpointCalls int
}

// Config holds orchestrator configuration.
type Config struct {
	// MaxRevisions bounds the revision loop. Default 2.
	MaxRevisions int

	// StageRetryDelay is the backoff before the single stage-level retry.
	// Default 500ms.
	StageRetryDelay time.Duration
}

const (
	defaultMaxRevisions    = 2
	defaultStageRetryDelay = 500 * time.Millisecond
)

func (c Config) maxRevisions() int {
	if c.MaxRevisions < 0 {
		return 0
	}
	if c.MaxRevisions == 0 {
		return defaultMaxRevisions
	}
	return c.MaxRevisions
}

func (c Config) stageRetryDelay() time.Duration {
	if c.StageRetryDelay <= 0 {
		return defaultStageRetryDelay
	}
	return c.StageRetryDelay
}
