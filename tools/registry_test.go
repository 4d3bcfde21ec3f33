package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoSpec(name string) Spec {
	return Spec{
		Name:        name,
		Description: "echoes its input",
		Parameters: []Parameter{
			{Name: "text", ParamType: "string", Description: "text to echo", Required: true},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var input struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", err
			}
			return input.Text, nil
		},
	}
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	output, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text": "hi"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if output != "hi" {
		t.Errorf("expected 'hi', got %q", output)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(echoSpec("echo")); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	// The original registration stays intact.
	if !r.Has("echo") {
		t.Error("expected original tool to remain registered")
	}
}

func TestRegisterEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Spec{}); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestExecuteUnknownToolNeverInvokesHandlers(t *testing.T) {
	r := NewRegistry()
	invoked := false
	spec := echoSpec("echo")
	spec.Handler = func(ctx context.Context, args json.RawMessage) (string, error) {
		invoked = true
		return "", nil
	}
	if err := r.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Execute(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
	if invoked {
		t.Error("handler must not run for an unknown tool")
	}
}

func TestExecuteRejectsInvalidArguments(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cases := []struct {
		name string
		args string
	}{
		{"missing required", `{}`},
		{"wrong type", `{"text": 42}`},
		{"not an object", `[1, 2]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), "echo", json.RawMessage(tc.args))
			if !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestExecuteWrapsHandlerFailure(t *testing.T) {
	r := NewRegistry()
	cause := errors.New("backend down")
	spec := echoSpec("echo")
	spec.Handler = func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", cause
	}
	if err := r.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text": "x"}`))
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
	if execErr.Tool != "echo" {
		t.Errorf("expected tool 'echo', got %q", execErr.Tool)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be wrapped")
	}
}

func TestNamesAndSchemasSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := r.Register(echoSpec(name)); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	names := r.Names()
	want := []string{"alpha", "mike", "zulu"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("names[%d]: expected %q, got %q", i, name, names[i])
		}
	}

	schemas := r.Schemas()
	for i, name := range want {
		if schemas[i].Name != name {
			t.Errorf("schemas[%d]: expected %q, got %q", i, name, schemas[i].Name)
		}
	}
}

func TestCalculator(t *testing.T) {
	r := WithDefaults()

	cases := []struct {
		expr string
		want string
	}{
		{"12*7", "84"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"-5 + 10", "5"},
		{"7 / 2", "3.5"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			args, _ := json.Marshal(map[string]string{"expression": tc.expr})
			output, err := r.Execute(context.Background(), "calculator", args)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if output != tc.want {
				t.Errorf("expected %q, got %q", tc.want, output)
			}
		})
	}
}

func TestCalculatorRejectsBadExpressions(t *testing.T) {
	r := WithDefaults()

	for _, expr := range []string{"", "1 / 0", "2 +", "(1 + 2", "foo"} {
		args, _ := json.Marshal(map[string]string{"expression": expr})
		_, err := r.Execute(context.Background(), "calculator", args)
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Errorf("%q: expected *ExecutionError, got %v", expr, err)
		}
	}
}
