// Package model provides domain types shared across packages.
package model

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Message is one entry in a conversation transcript. Messages are
// immutable once appended to a Memory; order is the transcript order.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// UserMessage creates a user message with the given token count.
func UserMessage(content string, tokens int) Message {
	return Message{Role: RoleUser, Content: content, TokenCount: tokens}
}

// AssistantMessage creates an assistant message with the given token count.
func AssistantMessage(content string, tokens int) Message {
	return Message{Role: RoleAssistant, Content: content, TokenCount: tokens}
}

// SystemMessage creates a system message with the given token count.
func SystemMessage(content string, tokens int) Message {
	return Message{Role: RoleSystem, Content: content, TokenCount: tokens}
}

// ToolMessage creates a tool result message tied to a tool call.
func ToolMessage(content, toolCallID string, tokens int) Message {
	return Message{Role: RoleTool, Content: content, TokenCount: tokens, ToolCallID: toolCallID}
}

// FinishAction is the sentinel action name that ends a ReAct run.
const FinishAction = "Finish"

// Step is one reason-act-observe cycle within a trajectory.
type Step struct {
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input,omitempty"`
	Observation string          `json:"observation,omitempty"`
	IsFinal     bool            `json:"is_final"`
}

// Trajectory is the ordered step history of one ReAct run. Append-only;
// it terminates when a step has IsFinal set or the step budget runs out.
type Trajectory []Step

// Final returns the final step, if any.
func (t Trajectory) Final() (Step, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].IsFinal {
			return t[i], true
		}
	}
	return Step{}, false
}

// TokenUsage contains cumulative token statistics for one or more
// endpoint calls.
type TokenUsage struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
