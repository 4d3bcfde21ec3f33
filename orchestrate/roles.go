package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mkallio/loom/internal/jsonx"
	"github.com/mkallio/loom/llm"
	"github.com/mkallio/loom/memory"
	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/react"
	"github.com/mkallio/loom/tools"
)

const plannerSystemPrompt = `You are a planning assistant. Decompose the user's goal into a short
list of independent subtasks. Subtasks must not depend on each other's
results. Respond with JSON only, in this exact format:

{"subtasks": ["first subtask", "second subtask"]}`

const reviewerSystemPrompt = `You are a reviewer. You are given a goal and the artifacts produced
for it, one per worker. Judge whether the artifacts together satisfy
the goal. Respond with JSON only, in this exact format:

{"accept": true, "issues": []}

If you reject, set "accept" to false and list concrete issues. Name
the responsible worker in each issue so it can be routed back.`

// UsageMeter accumulates endpoint token usage and call counts across
// roles, which may run concurrently. A nil meter records nothing.
type UsageMeter struct {
	mu    sync.Mutex
	usage model.TokenUsage
	calls int
}

func (m *UsageMeter) record(usage *model.TokenUsage, calls int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(usage)
	m.calls += calls
}

// Total returns the accumulated usage and endpoint call count.
func (m *UsageMeter) Total() (model.TokenUsage, int) {
	if m == nil {
		return model.TokenUsage{}, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, m.calls
}

// NewLLMPlanner returns a planner role that asks the endpoint to
// decompose a goal into subtasks.
func NewLLMPlanner(endpoint llm.Endpoint, meter *UsageMeter) PlannerFunc {
	return func(ctx context.Context, goal string) ([]string, error) {
		msgs := []model.Message{
			model.SystemMessage(plannerSystemPrompt, memory.MustCountTokens(plannerSystemPrompt)),
			model.UserMessage(goal, memory.MustCountTokens(goal)),
		}
		resp, err := endpoint.Invoke(ctx, msgs, nil)
		meter.record(respUsage(resp, err), 1)
		if err != nil {
			return nil, fmt.Errorf("planner invocation: %w", err)
		}

		var plan struct {
			Subtasks []string `json:"subtasks"`
		}
		if err := jsonx.ExtractInto(resp.Text, &plan); err != nil {
			return nil, fmt.Errorf("planner returned malformed plan: %w", err)
		}
		if len(plan.Subtasks) == 0 {
			return nil, errors.New("planner returned an empty plan")
		}
		return plan.Subtasks, nil
	}
}

// NewReActWorker returns a worker backed by a fresh reasoning loop per
// dispatch. Each dispatch gets its own memory so revisions start from
// the subtask and the reviewer's notes, not stale state.
func NewReActWorker(name string, specialties []string, endpoint llm.Endpoint, registry *tools.Registry, config react.Config, meter *UsageMeter) Worker {
	return Worker{
		Name:        name,
		Specialties: specialties,
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			goal := subtask
			if len(reviewNotes) > 0 {
				goal = fmt.Sprintf("%s\n\nAddress the following review feedback:\n- %s",
					subtask, strings.Join(reviewNotes, "\n- "))
			}

			planner := react.New(endpoint, registry, memory.New(nil), config)
			result := planner.Run(ctx, goal)
			meter.record(&result.Usage, result.EndpointCalls)
			switch result.Outcome {
			case react.OutcomeSuccess:
				return result.FinalAnswer, nil
			case react.OutcomeCancelled:
				return "", result.Err
			default:
				if result.Err != nil {
					return "", fmt.Errorf("worker %s: %s: %w", name, result.Outcome, result.Err)
				}
				return "", fmt.Errorf("worker %s: %s", name, result.Outcome)
			}
		},
	}
}

// NewLLMReviewer returns a reviewer role that asks the endpoint for a
// verdict over all artifacts.
func NewLLMReviewer(endpoint llm.Endpoint, meter *UsageMeter) ReviewerFunc {
	return func(ctx context.Context, task *TaskContext) (Review, error) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Goal: %s\n\n", task.Goal)
		for name, artifact := range task.Artifacts {
			fmt.Fprintf(&sb, "Artifact from %s:\n%s\n\n", name, artifact)
		}
		prompt := sb.String()

		msgs := []model.Message{
			model.SystemMessage(reviewerSystemPrompt, memory.MustCountTokens(reviewerSystemPrompt)),
			model.UserMessage(prompt, memory.MustCountTokens(prompt)),
		}
		resp, err := endpoint.Invoke(ctx, msgs, nil)
		meter.record(respUsage(resp, err), 1)
		if err != nil {
			return Review{}, fmt.Errorf("reviewer invocation: %w", err)
		}

		var review Review
		if err := jsonx.ExtractInto(resp.Text, &review); err != nil {
			return Review{}, fmt.Errorf("reviewer returned malformed verdict: %w", err)
		}
		return review, nil
	}
}

func respUsage(resp llm.Response, err error) *model.TokenUsage {
	if err != nil {
		return nil
	}
	return resp.Usage
}
