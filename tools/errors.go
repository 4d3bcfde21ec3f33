package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when registering a tool whose name is
	// already taken.
	ErrDuplicateName = errors.New("tools: duplicate tool name")

	// ErrUnknownTool is returned when executing an unregistered tool.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrInvalidParameters is returned when call arguments do not satisfy
	// the declared parameter schema. Checked before invocation.
	ErrInvalidParameters = errors.New("tools: invalid parameters")
)

// ExecutionError wraps a failure raised by a tool handler. Handler
// failures are never process-fatal; callers render them as observations.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
