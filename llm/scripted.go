package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// ScriptedTurn configures one endpoint turn in a scripted sequence.
type ScriptedTurn struct {
	Response Response
	Err      error
}

// Scripted is a deterministic endpoint that replays a fixed sequence of
// turns. Useful for tests and dry runs.
type Scripted struct {
	mu    sync.Mutex
	index int
	turns []ScriptedTurn
}

// NewScripted creates a scripted endpoint from the given turns.
func NewScripted(turns ...ScriptedTurn) *Scripted {
	cloned := make([]ScriptedTurn, len(turns))
	copy(cloned, turns)
	return &Scripted{turns: cloned}
}

// TextTurn is a convenience constructor for a plain-text turn.
func TextTurn(text string) ScriptedTurn {
	return ScriptedTurn{Response: Response{Text: text}}
}

// ErrTurn is a convenience constructor for a failing turn.
func ErrTurn(err error) ScriptedTurn {
	return ScriptedTurn{Err: err}
}

// Name returns the provider name.
func (s *Scripted) Name() string {
	return "scripted"
}

// Invoke returns the next scripted turn, failing once the script runs out.
func (s *Scripted) Invoke(ctx context.Context, _ []model.Message, _ []tools.Schema) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.turns) {
		return Response{}, fmt.Errorf("scripted endpoint exhausted at turn %d", s.index+1)
	}
	turn := s.turns[s.index]
	s.index++
	if turn.Err != nil {
		return Response{}, turn.Err
	}
	return turn.Response, nil
}

// Calls returns how many turns have been consumed.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Verify Scripted implements Endpoint
var _ Endpoint = (*Scripted)(nil)
