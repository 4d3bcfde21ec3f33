package jsonx

import (
	"strings"
	"testing"
)

type testStep struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
}

func TestExtractPureJSON(t *testing.T) {
	response := `{"thought": "compute it", "action": "calculator"}`
	var step testStep
	if err := ExtractInto(response, &step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Action != "calculator" {
		t.Errorf("expected action 'calculator', got %q", step.Action)
	}
}

func TestExtractWithSurroundingProse(t *testing.T) {
	cases := map[string]string{
		"prefix": `Sure, here is my step: {"thought": "t", "action": "a"}`,
		"suffix": `{"thought": "t", "action": "a"} Hope that helps!`,
		"both":   `Thinking... {"thought": "t", "action": "a"} Done.`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			var step testStep
			if err := ExtractInto(response, &step); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if step.Thought != "t" || step.Action != "a" {
				t.Errorf("bad extraction: %+v", step)
			}
		})
	}
}

func TestExtractCodeFences(t *testing.T) {
	response := "```json\n{\"thought\": \"t\", \"action\": \"a\"}\n```"
	var step testStep
	if err := ExtractInto(response, &step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Action != "a" {
		t.Errorf("expected action 'a', got %q", step.Action)
	}
}

func TestExtractNestedBraces(t *testing.T) {
	response := `{"thought": "t", "action": "a", "input": {"x": 1}}`
	raw, err := Extract(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != response {
		t.Errorf("expected full object back, got %q", raw)
	}
}

func TestExtractNoJSON(t *testing.T) {
	_, err := Extract("I could not decide on a step.")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestExtractTruncatesLongPreview(t *testing.T) {
	_, err := Extract(strings.Repeat("x", 500))
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(err.Error()) > 200 {
		t.Errorf("error preview not truncated: %d chars", len(err.Error()))
	}
}
