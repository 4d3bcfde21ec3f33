// Command execution for CLI commands.
//
// Information Hiding:
// - Endpoint/registry setup hidden
// - Session persistence wiring hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mkallio/loom/config"
	"github.com/mkallio/loom/llm"
	"github.com/mkallio/loom/memory"
	"github.com/mkallio/loom/orchestrate"
	"github.com/mkallio/loom/pkg/log"
	"github.com/mkallio/loom/react"
	"github.com/mkallio/loom/store"
	"github.com/mkallio/loom/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider    string
	StepBudget  int
	TokenBudget int
	Verbose     bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		StepBudget: 5,
		Verbose:    false,
	}
}

// RunTask executes a single goal with one reasoning loop.
func RunTask(ctx context.Context, goal string, opts Options) error {
	endpoint, err := createEndpoint(opts.Provider)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, opts.Verbose)
	planner := react.New(endpoint, tools.WithDefaults(), newMemory(opts), react.Config{
		StepBudget: opts.StepBudget,
	}).WithLogger(logger)

	fmt.Printf("Running goal with %s...\n\n", endpoint.Name())

	result := planner.Run(ctx, goal)
	return printRunResult(result, opts.Verbose)
}

// Orchestrate runs the planner/worker/reviewer pipeline for a goal.
// Worker specs take the form "name" or "name:tag1,tag2".
func Orchestrate(ctx context.Context, goal string, workerSpecs []string, maxRevisions int, opts Options) error {
	endpoint, err := createEndpoint(opts.Provider)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, opts.Verbose)
	registry := tools.WithDefaults()
	reactConfig := react.Config{StepBudget: opts.StepBudget}

	if len(workerSpecs) == 0 {
		workerSpecs = []string{"generalist"}
	}
	meter := &orchestrate.UsageMeter{}
	workers := make([]orchestrate.Worker, 0, len(workerSpecs))
	for _, spec := range workerSpecs {
		name, specialties := parseWorkerSpec(spec)
		workers = append(workers, orchestrate.NewReActWorker(name, specialties, endpoint, registry, reactConfig, meter))
	}

	orch, err := orchestrate.New(
		orchestrate.NewLLMPlanner(endpoint, meter),
		workers,
		orchestrate.NewLLMReviewer(endpoint, meter),
		orchestrate.Config{MaxRevisions: maxRevisions},
	)
	if err != nil {
		return err
	}
	orch = orch.WithLogger(logger).WithMeter(meter)

	fmt.Printf("Orchestrating across %d worker(s)...\n\n", len(workers))

	result := orch.Run(ctx, goal)

	switch result.Outcome {
	case orchestrate.OutcomeSuccess, orchestrate.OutcomeAcceptedWithReservations:
		for name, artifact := range result.Artifacts {
			fmt.Printf("=== %s ===\n%s\n\n", name, artifact)
		}
		if result.Outcome == orchestrate.OutcomeAcceptedWithReservations {
			fmt.Printf("Accepted with reservations after %d revision(s):\n", result.RevisionCount)
			for _, issue := range result.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		}
		if opts.Verbose {
			fmt.Printf("(%d endpoint calls, %d tokens)\n", result.EndpointCalls, result.Usage.TotalTokens)
		}
		return nil
	case orchestrate.OutcomeCancelled:
		return fmt.Errorf("orchestration cancelled: %w", result.Err)
	default:
		return fmt.Errorf("orchestration failed: %w", result.Err)
	}
}

// Chat starts an interactive session. Conversation state persists to the
// database across invocations when a session ID is given.
func Chat(ctx context.Context, sessionID, dbPath string, opts Options) error {
	endpoint, err := createEndpoint(opts.Provider)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	if sessionID == "" {
		sessionID = uuid.New().String()
		fmt.Printf("New session: %s\n", sessionID)
	}

	logger := log.New(os.Stderr, opts.Verbose)
	mem := newMemory(opts).WithLogger(logger)
	if err := mem.Restore(ctx, st, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("restore session: %w", err)
	}

	planner := react.New(endpoint, tools.WithDefaults(), mem, react.Config{
		StepBudget: opts.StepBudget,
	}).WithLogger(logger)

	fmt.Printf("Chatting with %s. Type 'exit' to quit.\n", endpoint.Name())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		result := planner.Run(ctx, input)
		if err := printRunResult(result, opts.Verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		if err := mem.Persist(ctx, st, sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to persist session: %v\n", err)
		}
	}
	return scanner.Err()
}

// ListTools prints the registered tool set.
func ListTools() {
	registry := tools.WithDefaults()
	fmt.Println("Available tools:")
	for _, name := range registry.Names() {
		fmt.Printf("  %s\n", name)
	}
}

func createEndpoint(provider string) (llm.Endpoint, error) {
	if provider == "" {
		provider = "anthropic"
	}
	settings, err := config.New(provider)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKeyFor(provider)
	if err != nil {
		return nil, err
	}
	return llm.NewEndpoint(settings.LLM.Provider, apiKey, settings.LLM.Model,
		settings.LLM.MaxTokens, settings.LLM.Temperature)
}

func newMemory(opts Options) *memory.Memory {
	if opts.TokenBudget > 0 {
		return memory.New(memory.TokenBudget{Max: opts.TokenBudget})
	}
	return memory.New(nil)
}

func openStore(dbPath string) (store.Store, func(), error) {
	if dbPath == "" {
		return store.NewInMemory(), func() {}, nil
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	st, err := store.OpenSqlite(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}

func parseWorkerSpec(spec string) (string, []string) {
	name, tags, found := strings.Cut(spec, ":")
	if !found || tags == "" {
		return name, nil
	}
	return name, strings.Split(tags, ",")
}

func printRunResult(result react.Result, verbose bool) error {
	switch result.Outcome {
	case react.OutcomeSuccess:
		if verbose {
			printSteps(result)
		}
		fmt.Printf("%s\n\n", result.FinalAnswer)
		if n := len(result.Trajectory); n > 1 {
			fmt.Printf("(%d steps, %d endpoint calls)\n", n, result.EndpointCalls)
		}
		return nil
	case react.OutcomeStepBudgetExceeded:
		fmt.Fprintln(os.Stderr, "Step budget exhausted before a final answer.")
		printSteps(result)
		return errors.New("step budget exceeded")
	case react.OutcomeCancelled:
		return fmt.Errorf("run cancelled: %w", result.Err)
	default:
		return fmt.Errorf("run failed: %w", result.Err)
	}
}

func printSteps(result react.Result) {
	for i, step := range result.Trajectory {
		fmt.Printf("Step %d:\n  Thought: %s\n", i+1, step.Thought)
		if !step.IsFinal {
			fmt.Printf("  Action: %s\n  Observation: %s\n", step.Action, step.Observation)
		}
	}
	fmt.Println()
}
