// Tool registration and dispatch.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Parameter validation internalized
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Registry maps tool names to executable handlers. Registration happens
// once at setup; there is no hot reload.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Spec
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Spec),
	}
}

// Register adds a tool to the registry.
// Returns ErrDuplicateName if the name is already taken.
func (r *Registry) Register(spec Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidParameters)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, spec.Name)
	}
	r.tools[spec.Name] = spec
	return nil
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the declared schemas of all registered tools, sorted by
// name. Used to advertise capabilities to the endpoint.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(r.tools))
	for _, spec := range r.tools {
		schemas = append(schemas, spec.schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Execute validates arguments against the tool's declared schema and
// invokes the handler.
//
// Failure modes:
//   - ErrUnknownTool: name not registered; no handler runs
//   - ErrInvalidParameters: arguments rejected before invocation
//   - *ExecutionError: the handler itself failed; carries the cause
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	spec, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if err := validateArgs(spec, args); err != nil {
		return "", err
	}

	output, err := spec.Handler(ctx, args)
	if err != nil {
		return "", &ExecutionError{Tool: name, Err: err}
	}
	return output, nil
}

// Description returns a formatted description of all tools for prompts.
func (r *Registry) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var descriptions []string
	for _, name := range names {
		spec := r.tools[name]
		var params []string
		for _, p := range spec.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			spec.Name, spec.Description, strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

// validateArgs checks call arguments against the declared parameters.
func validateArgs(spec Spec, args json.RawMessage) error {
	parsed := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return fmt.Errorf("%w: arguments are not a JSON object: %v", ErrInvalidParameters, err)
		}
	}

	for _, p := range spec.Parameters {
		value, present := parsed[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: missing required parameter %q", ErrInvalidParameters, p.Name)
			}
			continue
		}
		if !typeMatches(p.ParamType, value) {
			return fmt.Errorf("%w: parameter %q is not a %s", ErrInvalidParameters, p.Name, p.ParamType)
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a declared type.
func typeMatches(paramType string, value any) bool {
	switch paramType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	}
	// Unknown declared types are not enforced.
	return true
}
