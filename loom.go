// Package loom wires the reasoning loop, memory, tools, and the
// multi-role pipeline into a small caller-facing surface.
//
// Callers that need finer control should compose the subpackages
// directly; this package only covers the common paths.
package loom

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkallio/loom/config"
	"github.com/mkallio/loom/llm"
	"github.com/mkallio/loom/memory"
	"github.com/mkallio/loom/orchestrate"
	"github.com/mkallio/loom/react"
	"github.com/mkallio/loom/tools"
)

// Options configures a run.
type Options struct {
	// Provider selects the model endpoint (openai, anthropic, gemini,
	// or an alias). Required unless Endpoint is set.
	Provider string

	// Endpoint overrides provider-based endpoint construction.
	// Useful for tests and custom adapters.
	Endpoint llm.Endpoint

	// Registry supplies the tool set. Nil means tools.WithDefaults().
	Registry *tools.Registry

	// Policy bounds conversation memory. Nil means unbounded.
	Policy memory.Policy

	// StepBudget bounds reasoning steps per run. Zero means the
	// environment default (RUN_STEP_BUDGET, default 5).
	StepBudget int

	// MaxRevisions bounds the orchestration revision loop. Zero means
	// the environment default (PIPELINE_MAX_REVISIONS, default 2).
	MaxRevisions int

	// Logger receives structured run events. Zero value disables logging.
	Logger zerolog.Logger
}

func (o Options) endpoint() (llm.Endpoint, error) {
	if o.Endpoint != nil {
		return o.Endpoint, nil
	}
	settings, err := config.New(o.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKeyFor(o.Provider)
	if err != nil {
		return nil, err
	}
	return llm.NewEndpoint(settings.LLM.Provider, apiKey, settings.LLM.Model,
		settings.LLM.MaxTokens, settings.LLM.Temperature)
}

func (o Options) registry() *tools.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return tools.WithDefaults()
}

func (o Options) stepBudget(settings config.Settings) int {
	if o.StepBudget > 0 {
		return o.StepBudget
	}
	return settings.Run.StepBudget
}

func (o Options) maxRevisions(settings config.Settings) int {
	if o.MaxRevisions != 0 {
		return o.MaxRevisions
	}
	return settings.Pipeline.MaxRevisions
}

// RunReAct executes a single reasoning loop for the goal and returns
// its result. The loop ends on a Finish decision, on step-budget
// exhaustion, or on context cancellation.
func RunReAct(ctx context.Context, goal string, opts Options) (react.Result, error) {
	endpoint, err := opts.endpoint()
	if err != nil {
		return react.Result{}, fmt.Errorf("loom: %w", err)
	}

	settings, err := runSettings(opts)
	if err != nil {
		return react.Result{}, fmt.Errorf("loom: %w", err)
	}

	planner := react.New(endpoint, opts.registry(), memory.New(opts.Policy), react.Config{
		StepBudget:      opts.stepBudget(settings),
		MaxParseRetries: settings.Run.MaxParseRetries,
		CallTimeout:     settings.Run.CallTimeout,
	}).WithLogger(opts.Logger)

	return planner.Run(ctx, goal), nil
}

// WorkerSpec names a pipeline worker and the subtask keywords it claims.
type WorkerSpec struct {
	Name        string
	Specialties []string
}

// RunOrchestration executes the planner/worker/reviewer pipeline for
// the goal. Each worker runs its own reasoning loop per dispatch.
func RunOrchestration(ctx context.Context, goal string, workerSpecs []WorkerSpec, opts Options) (orchestrate.Result, error) {
	endpoint, err := opts.endpoint()
	if err != nil {
		return orchestrate.Result{}, fmt.Errorf("loom: %w", err)
	}

	settings, err := runSettings(opts)
	if err != nil {
		return orchestrate.Result{}, fmt.Errorf("loom: %w", err)
	}

	if len(workerSpecs) == 0 {
		workerSpecs = []WorkerSpec{{Name: "generalist"}}
	}

	registry := opts.registry()
	reactConfig := react.Config{
		StepBudget:      opts.stepBudget(settings),
		MaxParseRetries: settings.Run.MaxParseRetries,
		CallTimeout:     settings.Run.CallTimeout,
	}

	meter := &orchestrate.UsageMeter{}
	workers := make([]orchestrate.Worker, 0, len(workerSpecs))
	for _, spec := range workerSpecs {
		workers = append(workers, orchestrate.NewReActWorker(spec.Name, spec.Specialties, endpoint, registry, reactConfig, meter))
	}

	orch, err := orchestrate.New(
		orchestrate.NewLLMPlanner(endpoint, meter),
		workers,
		orchestrate.NewLLMReviewer(endpoint, meter),
		orchestrate.Config{
			MaxRevisions:    opts.maxRevisions(settings),
			StageRetryDelay: settings.Pipeline.StageRetryDelay,
		},
	)
	if err != nil {
		return orchestrate.Result{}, fmt.Errorf("loom: %w", err)
	}
	orch = orch.WithLogger(opts.Logger).WithMeter(meter)

	return orch.Run(ctx, goal), nil
}

// runSettings loads environment-driven settings; a custom endpoint
// skips provider validation and uses the environment defaults.
func runSettings(opts Options) (config.Settings, error) {
	if opts.Endpoint != nil && opts.Provider == "" {
		return config.NewDefaults()
	}
	return config.New(opts.Provider)
}
