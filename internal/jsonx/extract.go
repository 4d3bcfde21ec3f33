// Package jsonx provides JSON extraction utilities for parsing model output.
//
// Models often return JSON embedded in prose or wrapped in markdown code
// fences. This package recovers the JSON object from such responses.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract finds the JSON object in a response string and returns it raw.
// Handled shapes:
//  1. Pure JSON - returned as-is
//  2. JSON inside markdown code fences (```json ... ```)
//  3. JSON embedded in text - first '{' to last '}'
//
// Only objects are handled, not top-level arrays.
func Extract(response string) (string, error) {
	response = stripCodeFences(response)

	var probe any
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidate := response[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// ExtractInto extracts the JSON object from a response and unmarshals it
// into the provided value.
func ExtractInto(response string, v any) error {
	raw, err := Extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

// stripCodeFences removes leading/trailing markdown code fence markers.
func stripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
