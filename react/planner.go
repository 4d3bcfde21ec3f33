// ReAct (Reason + Act) loop implementation.
//
// This is the canonical implementation of the ReAct pattern; all single-
// agent execution goes through this package.
//
// Information Hiding:
// - State machine internals hidden
// - Endpoint communication hidden
// - Tool execution coordination hidden
// - Memory management hidden
package react

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkallio/loom/internal/jsonx"
	"github.com/mkallio/loom/llm"
	"github.com/mkallio/loom/memory"
	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// state is the planner's position in the reason-act-observe cycle.
type state int

const (
	stateReasoning state = iota
	stateActing
	stateObserving
	stateDone
)

// Planner drives the Thought -> Action -> Observation loop against the
// endpoint and tool registry, using its memory for context.
//
// A planner run mutates its memory exclusively; callers sharing one
// memory across planners must serialize runs.
type Planner struct {
	endpoint llm.Endpoint
	registry *tools.Registry
	mem      *memory.Memory
	config   Config
	logger   zerolog.Logger
}

// New creates a planner. A nil registry gets an empty one; a nil memory
// gets an unbounded one.
func New(endpoint llm.Endpoint, registry *tools.Registry, mem *memory.Memory, config Config) *Planner {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if mem == nil {
		mem = memory.New(memory.Unbounded{})
	}
	return &Planner{
		endpoint: endpoint,
		registry: registry,
		mem:      mem,
		config:   config,
		logger:   zerolog.Nop(),
	}
}

// WithLogger sets the run logger.
func (p *Planner) WithLogger(logger zerolog.Logger) *Planner {
	p.logger = logger
	return p
}

// Memory returns the memory owned by this planner's runs.
func (p *Planner) Memory() *memory.Memory {
	return p.mem
}

// Run executes one ReAct run for the goal. Steps are strictly sequential;
// each step's prompt depends on the prior step's observation. The run
// terminates with exactly one Outcome; it never loops indefinitely.
func (p *Planner) Run(ctx context.Context, goal string) Result {
	runID := uuid.New().String()
	logger := p.logger.With().Str("run_id", runID).Logger()

	result := Result{RunID: runID}
	budget := p.config.stepBudget()

	p.appendMessage(model.UserMessage(fmt.Sprintf("Task: %s", goal), memory.MustCountTokens(goal)+2))

	var (
		current     decision
		observation string
		steps       int
	)

	for st := stateReasoning; st != stateDone; {
		if err := ctx.Err(); err != nil {
			return p.cancelled(result, err)
		}

		switch st {
		case stateReasoning:
			if steps >= budget {
				result.Outcome = OutcomeStepBudgetExceeded
				logger.Warn().Int("budget", budget).Msg("step budget exhausted without Finish")
				return result
			}

			d, usage, calls, err := p.reason(ctx)
			result.Usage.Add(usage)
			result.EndpointCalls += calls
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return p.cancelled(result, err)
				}
				result.Outcome = OutcomeFailed
				result.Err = err
				logger.Error().Err(err).Msg("run failed")
				return result
			}
			current = d
			st = stateActing

		case stateActing:
			if current.Action == model.FinishAction {
				result.FinalAnswer = current.finalAnswer()
				result.Trajectory = append(result.Trajectory, model.Step{
					Thought:     current.Thought,
					Action:      current.Action,
					ActionInput: current.ActionInput,
					IsFinal:     true,
				})
				p.appendMessage(model.AssistantMessage(result.FinalAnswer, messageTokens(result.FinalAnswer)))
				result.Outcome = OutcomeSuccess
				logger.Debug().Int("steps", len(result.Trajectory)).Msg("run finished")
				st = stateDone
				continue
			}
			observation = p.act(ctx, current)
			st = stateObserving

		case stateObserving:
			result.Trajectory = append(result.Trajectory, model.Step{
				Thought:     current.Thought,
				Action:      current.Action,
				ActionInput: current.ActionInput,
				Observation: observation,
			})

			p.appendMessage(model.AssistantMessage(renderDecision(current), memory.MustCountTokens(current.Thought)+8))
			p.appendMessage(model.ToolMessage(observation, current.Action, messageTokens(observation)))

			steps++
			logger.Debug().
				Str("action", current.Action).
				Int("step", steps).
				Msg("step observed")
			st = stateReasoning
		}
	}

	return result
}

// reason queries the endpoint until it yields a well-formed decision,
// appending a corrective instruction after each malformed response.
// First well-formed step wins; no speculative branches.
func (p *Planner) reason(ctx context.Context) (decision, *model.TokenUsage, int, error) {
	usage := &model.TokenUsage{}
	calls := 0

	maxAttempts := 1 + p.config.maxParseRetries()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		messages := p.promptMessages()

		response, err := llm.Retry(ctx, p.config.Retry, func(ctx context.Context) (llm.Response, error) {
			callCtx := ctx
			if p.config.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.config.CallTimeout)
				defer cancel()
			}
			return p.endpoint.Invoke(callCtx, messages, p.registry.Schemas())
		})
		calls++
		if err != nil {
			return decision{}, usage, calls, fmt.Errorf("endpoint invocation: %w", err)
		}
		usage.Add(response.Usage)

		d, ok := p.parseDecision(response)
		if ok {
			return d, usage, calls, nil
		}

		p.logger.Debug().Int("attempt", attempt+1).Msg("malformed step, retrying with corrective instruction")
		instruction := correctiveInstruction(p.registry)
		p.appendMessage(model.UserMessage(instruction, memory.MustCountTokens(instruction)))
	}

	return decision{}, usage, calls, fmt.Errorf("%w: no well-formed step after %d attempts", ErrMalformedStep, maxAttempts)
}

// parseDecision turns an endpoint response into a decision. Structured
// tool calls are accepted directly; text responses must carry the JSON
// step protocol.
func (p *Planner) parseDecision(response llm.Response) (decision, bool) {
	if response.ToolCall != nil {
		d := decision{
			Thought:     response.Text,
			Action:      response.ToolCall.Name,
			ActionInput: response.ToolCall.Arguments,
		}
		if d.Thought == "" {
			d.Thought = fmt.Sprintf("Calling %s", d.Action)
		}
		if d.wellFormed(p.registry.Has) {
			return d, true
		}
		return decision{}, false
	}

	var d decision
	if err := jsonx.ExtractInto(response.Text, &d); err != nil {
		return decision{}, false
	}
	if !d.wellFormed(p.registry.Has) {
		return decision{}, false
	}
	return d, true
}

// act executes the decided tool call and renders the observation.
// Tool failures become observations, never run failures.
func (p *Planner) act(ctx context.Context, d decision) string {
	callCtx := ctx
	if p.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.config.CallTimeout)
		defer cancel()
	}

	output, err := p.registry.Execute(callCtx, d.Action, d.ActionInput)
	if err != nil {
		p.logger.Debug().Err(err).Str("tool", d.Action).Msg("tool call failed")
		return fmt.Sprintf("Tool failed: %v", err)
	}
	return output
}

// promptMessages assembles the endpoint prompt: system instructions plus
// the current memory snapshot (which carries the goal and all prior
// observations).
func (p *Planner) promptMessages() []model.Message {
	system := p.config.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	prompt := fmt.Sprintf(
		`%s

Available Tools:
%s

You have a maximum of %d steps.
Respond in this JSON format:
{
  "thought": "your reasoning",
  "action": "tool name or %q",
  "action_input": {...} or "final answer text"
}

When the task is complete, set action to %q and put the final answer in action_input.`,
		system,
		p.registry.Description(),
		p.config.stepBudget(),
		model.FinishAction,
		model.FinishAction,
	)

	messages := []model.Message{model.SystemMessage(prompt, memory.MustCountTokens(prompt))}
	return append(messages, p.mem.Snapshot()...)
}

const defaultSystemPrompt = "You are a helpful assistant that solves tasks step by step using tools."

// appendMessage adds to memory, logging rather than failing on an
// invalid message (counts are computed locally, so this only fires on
// programmer error).
func (p *Planner) appendMessage(msg model.Message) {
	if err := p.mem.Append(msg); err != nil {
		p.logger.Error().Err(err).Msg("memory append rejected")
	}
}

// messageTokens counts transcript-message tokens with a floor of one,
// so content that tokenizes to nothing (an empty tool output, an empty
// final answer) still satisfies Append's positive-count requirement.
func messageTokens(text string) int {
	if n := memory.MustCountTokens(text); n > 0 {
		return n
	}
	return 1
}

func (p *Planner) cancelled(result Result, err error) Result {
	result.Outcome = OutcomeCancelled
	result.Err = err
	p.logger.Info().Msg("run cancelled")
	return result
}

// renderDecision serializes a decision for the transcript.
func renderDecision(d decision) string {
	var b strings.Builder
	b.WriteString(`{"thought": `)
	b.WriteString(fmt.Sprintf("%q", d.Thought))
	b.WriteString(`, "action": `)
	b.WriteString(fmt.Sprintf("%q", d.Action))
	if len(d.ActionInput) > 0 {
		b.WriteString(`, "action_input": `)
		b.Write(d.ActionInput)
	}
	b.WriteString("}")
	return b.String()
}

// correctiveInstruction nudges the endpoint back onto the step protocol.
func correctiveInstruction(registry *tools.Registry) string {
	return fmt.Sprintf(
		"Your last response could not be parsed. Respond with a single JSON object "+
			`{"thought": "...", "action": "...", "action_input": ...} where action is one of [%s] or %q.`,
		strings.Join(registry.Names(), ", "), model.FinishAction,
	)
}
