// Package tools provides the typed tool system for agents.
//
// Information Hiding:
// - Tool dispatch and parameter validation hidden behind the registry
// - Handler failure wrapping internalized
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Parameter declares one parameter in a tool's schema.
type Parameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Handler executes a tool call. Arguments have already been validated
// against the declared parameters. Domain failures are returned as errors
// and wrapped by the registry.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Spec is the registered name, parameter schema, and handler for one
// callable capability.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// String returns a short representation of the spec.
func (s Spec) String() string {
	return fmt.Sprintf("%s: %s", s.Name, s.Description)
}

// Schema is the declared shape of a tool, advertised to the language
// model endpoint. Parameters follow JSON Schema conventions.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// schema builds the JSON Schema form of the spec's parameters.
func (s Spec) schema() Schema {
	properties := make(map[string]any, len(s.Parameters))
	var required []string
	for _, p := range s.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}

	return Schema{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
	}
}
