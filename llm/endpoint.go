// Package llm provides the language model endpoint boundary.
//
// The endpoint is treated as an opaque, potentially slow, potentially
// failing remote call. Each adapter implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error classification
package llm

import (
	"context"
	"encoding/json"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// ToolCallRequest is a structured tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Response is what an endpoint invocation produced: free-form text,
// optionally a structured tool call, and usage when the provider
// reports it.
type Response struct {
	Text     string
	ToolCall *ToolCallRequest
	Usage    *model.TokenUsage
}

// Endpoint is the abstract interface for language model endpoints.
// Invoke blocks until the provider answers, the context is cancelled,
// or a caller-supplied timeout fires.
type Endpoint interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Invoke sends role-tagged messages and optional tool declarations,
	// returning text or a tool-invocation request.
	Invoke(ctx context.Context, messages []model.Message, toolSchemas []tools.Schema) (Response, error)
}
