// Built-in tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Calculator returns a tool that evaluates arithmetic expressions with
// +, -, *, / and parentheses.
func Calculator() Spec {
	return Spec{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression",
		Parameters: []Parameter{
			{Name: "expression", ParamType: "string", Description: "Expression to evaluate, e.g. \"12*7\"", Required: true},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var input struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			value, err := evalExpression(input.Expression)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(value, 'f', -1, 64), nil
		},
	}
}

// Clock returns a tool that reports the current time in RFC 3339 format.
func Clock() Spec {
	return Spec{
		Name:        "clock",
		Description: "Get the current date and time",
		Parameters:  []Parameter{},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return time.Now().Format(time.RFC3339), nil
		},
	}
}

// WithDefaults creates a registry with the built-in tools registered.
// Built-in names are distinct, so registration cannot fail.
func WithDefaults() *Registry {
	registry := NewRegistry()
	for _, spec := range []Spec{Calculator(), Clock()} {
		if err := registry.Register(spec); err != nil {
			panic(fmt.Sprintf("tools: built-in registration: %v", err))
		}
	}
	return registry
}

// evalExpression evaluates +, -, *, / with the usual precedence and
// parentheses via recursive descent.
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: strings.TrimSpace(expr)}
	if p.input == "" {
		return 0, fmt.Errorf("empty expression")
	}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	case c == '-':
		p.pos++
		value, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		return -value, nil
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || p.input[p.pos] >= '0' && p.input[p.pos] <= '9') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", p.input[start:p.pos], err)
	}
	return value, nil
}
