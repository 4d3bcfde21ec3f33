// Multi-role pipeline orchestration.
//
// A goal flows Planner -> Workers -> Reviewer with a bounded
// propose-review-revise cycle.
//
// Information Hiding:
// - Subtask routing hidden
// - Worker dispatch coordination hidden
// - Revision bookkeeping hidden
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator runs a pipeline of named roles over a shared task context.
// Not safe for concurrent use - use separate instances for concurrent
// orchestrations.
type Orchestrator struct {
	planner  PlannerFunc
	workers  []Worker
	reviewer ReviewerFunc
	config   Config
	logger   zerolog.Logger
	meter    *UsageMeter
}

// New creates an orchestrator. At least one worker is required.
func New(planner PlannerFunc, workers []Worker, reviewer ReviewerFunc, config Config) (*Orchestrator, error) {
	if planner == nil {
		return nil, errors.New("orchestrate: planner role is required")
	}
	if len(workers) == 0 {
		return nil, errors.New("orchestrate: at least one worker is required")
	}
	if reviewer == nil {
		return nil, errors.New("orchestrate: reviewer role is required")
	}
	return &Orchestrator{
		planner:  planner,
		workers:  workers,
		reviewer: reviewer,
		config:   config,
		logger:   zerolog.Nop(),
	}, nil
}

// WithLogger sets the pipeline logger.
func (o *Orchestrator) WithLogger(logger zerolog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// WithMeter attaches a usage meter; its totals are copied into the
// Result at the end of each run. The roles must share the same meter
// for the totals to mean anything.
func (o *Orchestrator) WithMeter(meter *UsageMeter) *Orchestrator {
	o.meter = meter
	return o
}

// Run executes one pipeline for the goal. The run terminates with
// exactly one Outcome; the revision loop never exceeds MaxRevisions
// re-dispatches.
func (o *Orchestrator) Run(ctx context.Context, goal string) Result {
	pipelineID := uuid.New().String()
	logger := o.logger.With().Str("pipeline_id", pipelineID).Logger()

	task := &TaskContext{
		Goal:      goal,
		Artifacts: make(map[string]string),
	}
	result := Result{PipelineID: pipelineID}

	// Stage 1: plan.
	subtasks, err := runStage(ctx, o.config.stageRetryDelay(), logger, "planner",
		func(ctx context.Context) ([]string, error) {
			return o.planner(ctx, goal)
		})
	if err != nil {
		return o.stageFailure(result, task, err)
	}
	task.Subtasks = subtasks
	logger.Debug().Int("subtasks", len(subtasks)).Msg("goal decomposed")

	// Stage 2: dispatch every subtask to its matching worker.
	assignments := o.assign(task.Subtasks)
	if err := o.dispatch(ctx, logger, task, workerSet(assignments), assignments); err != nil {
		return o.stageFailure(result, task, err)
	}

	// Stage 3..: review, revise flagged workers, bounded.
	maxRevisions := o.config.maxRevisions()
	for {
		review, err := runStage(ctx, o.config.stageRetryDelay(), logger, "reviewer",
			func(ctx context.Context) (Review, error) {
				return o.reviewer(ctx, task)
			})
		if err != nil {
			return o.stageFailure(result, task, err)
		}

		if review.Accept {
			logger.Info().Int("revisions", task.RevisionCount).Msg("reviewer accepted")
			return o.finish(result, task, OutcomeSuccess, nil)
		}

		if task.RevisionCount >= maxRevisions {
			logger.Warn().
				Int("revisions", task.RevisionCount).
				Strs("issues", review.Issues).
				Msg("revision bound reached; accepting with reservations")
			result.Issues = review.Issues
			return o.finish(result, task, OutcomeAcceptedWithReservations, nil)
		}

		task.RevisionCount++
		task.ReviewNotes = append(task.ReviewNotes, review.Issues...)

		flagged := o.flaggedWorkers(logger, review.Issues)
		logger.Debug().
			Int("revision", task.RevisionCount).
			Int("flagged_workers", len(flagged)).
			Msg("re-dispatching flagged workers")

		if err := o.dispatch(ctx, logger, task, flagged, assignments); err != nil {
			return o.stageFailure(result, task, err)
		}
	}
}

// assign routes each subtask to a worker by specialty tag match,
// falling back to the default (first) worker.
func (o *Orchestrator) assign(subtasks []string) map[string][]string {
	assignments := make(map[string][]string)
	for _, subtask := range subtasks {
		worker := o.selectWorker(subtask)
		assignments[worker.Name] = append(assignments[worker.Name], subtask)
	}
	return assignments
}

func (o *Orchestrator) selectWorker(subtask string) Worker {
	lowered := strings.ToLower(subtask)
	for _, w := range o.workers {
		for _, tag := range w.Specialties {
			if tag != "" && strings.Contains(lowered, strings.ToLower(tag)) {
				return w
			}
		}
	}
	return o.workers[0]
}

// dispatch runs the named workers concurrently over their assigned
// subtasks and waits for all of them. Workers share no mutable state;
// each writes its own artifact slot exactly once per dispatch.
func (o *Orchestrator) dispatch(ctx context.Context, logger zerolog.Logger, task *TaskContext, names map[string]bool, assignments map[string][]string) error {
	type workerResult struct {
		name   string
		output string
		err    error
	}

	var wg sync.WaitGroup
	results := make(chan workerResult, len(o.workers))

	for _, w := range o.workers {
		if !names[w.Name] {
			continue
		}
		subtasks := assignments[w.Name]
		if len(subtasks) == 0 {
			continue
		}

		wg.Add(1)
		go func(w Worker, subtasks []string) {
			defer wg.Done()
			output, err := o.runWorker(ctx, logger, w, subtasks, task.ReviewNotes)
			results <- workerResult{name: w.Name, output: output, err: err}
		}(w, subtasks)
	}

	// Barrier: the reviewer must observe every dispatched result.
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			return r.err
		}
		task.Artifacts[r.name] = r.output
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// runWorker executes one worker over its subtasks sequentially, with the
// stage-level retry applied per subtask.
func (o *Orchestrator) runWorker(ctx context.Context, logger zerolog.Logger, w Worker, subtasks []string, reviewNotes []string) (string, error) {
	var outputs []string
	for _, subtask := range subtasks {
		output, err := runStage(ctx, o.config.stageRetryDelay(), logger, w.Name,
			func(ctx context.Context) (string, error) {
				return w.Run(ctx, subtask, reviewNotes)
			})
		if err != nil {
			return "", err
		}
		outputs = append(outputs, output)
	}
	return strings.Join(outputs, "\n\n"), nil
}

// flaggedWorkers maps reviewer issues back to workers by name mention.
// An issue that references no known worker is attributed to the default
// worker; the ambiguity is logged rather than guessed at further.
func (o *Orchestrator) flaggedWorkers(logger zerolog.Logger, issues []string) map[string]bool {
	flagged := make(map[string]bool)
	for _, issue := range issues {
		lowered := strings.ToLower(issue)
		matched := false
		for _, w := range o.workers {
			if strings.Contains(lowered, strings.ToLower(w.Name)) {
				flagged[w.Name] = true
				matched = true
			}
		}
		if !matched {
			defaultWorker := o.workers[0].Name
			logger.Warn().
				Str("issue", issue).
				Str("attributed_to", defaultWorker).
				Msg("reviewer issue references no known worker")
			flagged[defaultWorker] = true
		}
	}
	return flagged
}

func (o *Orchestrator) stageFailure(result Result, task *TaskContext, err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return o.finish(result, task, OutcomeCancelled, err)
	}
	o.logger.Error().Err(err).Msg("pipeline aborted")
	return o.finish(result, task, OutcomeStageFailed, err)
}

func (o *Orchestrator) finish(result Result, task *TaskContext, outcome Outcome, err error) Result {
	result.Artifacts = task.Artifacts
	result.Subtasks = task.Subtasks
	result.ReviewNotes = task.ReviewNotes
	result.RevisionCount = task.RevisionCount
	result.Outcome = outcome
	result.Err = err
	result.Usage, result.EndpointCalls = o.meter.Total()
	return result
}

// workerSet turns an assignment map into the set of workers to dispatch.
func workerSet(assignments map[string][]string) map[string]bool {
	names := make(map[string]bool, len(assignments))
	for name := range assignments {
		names[name] = true
	}
	return names
}

// runStage invokes a role function, retrying once with backoff on
// failure. A second consecutive failure aborts the pipeline with a
// StageError carrying the role and cause.
func runStage[T any](ctx context.Context, delay time.Duration, logger zerolog.Logger, role string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, context.Canceled) {
		return zero, err
	}

	logger.Warn().Err(err).Str("role", role).Dur("backoff", delay).Msg("stage failed, retrying once")

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-time.After(delay):
	}

	result, err = fn(ctx)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, context.Canceled) {
		return zero, err
	}
	return zero, &StageError{Role: role, Cause: fmt.Errorf("failed after retry: %w", err)}
}
