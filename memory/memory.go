// Bounded conversation memory.
//
// Information Hiding:
// - Message storage and eviction hidden
// - Snapshot serialization format hidden
// - Persistence coordination hidden
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/store"
)

// ErrInvalidMessage is returned for messages that cannot be appended:
// unknown role or missing precomputed token count. The manager never
// estimates token counts on behalf of the caller.
var ErrInvalidMessage = errors.New("memory: invalid message")

// Memory owns an ordered message history and enforces a retention policy.
//
// Memory is written by the single planner run that owns it. It is not
// designed for concurrent writers; callers sharing one instance across
// planners must serialize access.
type Memory struct {
	mu     sync.RWMutex
	msgs   []model.Message
	policy Policy
	logger zerolog.Logger
}

// New creates an empty memory with the given retention policy.
// A nil policy behaves as Unbounded.
func New(policy Policy) *Memory {
	if policy == nil {
		policy = Unbounded{}
	}
	return &Memory{policy: policy, logger: zerolog.Nop()}
}

// WithLogger sets the logger used to report evictions and budget overruns.
func (m *Memory) WithLogger(logger zerolog.Logger) *Memory {
	m.logger = logger
	return m
}

// Append adds a message to the tail and applies the retention policy.
// The policy runs only after the append completes; a mid-append message
// is never dropped.
func (m *Memory) Append(msg model.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}
	if msg.TokenCount <= 0 {
		return fmt.Errorf("%w: message has no token count", ErrInvalidMessage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.msgs = append(m.msgs, msg)
	m.applyPolicy()
	return nil
}

// Snapshot returns a copy of the current ordered message history.
func (m *Memory) Snapshot() []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make([]model.Message, len(m.msgs))
	copy(copied, m.msgs)
	return copied
}

// Len returns the current number of messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.msgs)
}

// TokenTotal returns the sum of token counts across kept messages.
func (m *Memory) TokenTotal() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, msg := range m.msgs {
		total += msg.TokenCount
	}
	return total
}

// Trim applies the retention policy and reports what it did.
// Idempotent: trimming an already-trimmed memory evicts nothing.
func (m *Memory) Trim() TrimReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyPolicy()
}

// applyPolicy must be called with the lock held.
func (m *Memory) applyPolicy() TrimReport {
	kept, report := m.policy.trim(m.msgs)
	if report.Evicted > 0 {
		// Reslice into a fresh backing array so evicted messages are
		// released and appends never clobber a snapshot.
		m.msgs = append([]model.Message(nil), kept...)
		m.logger.Debug().
			Int("evicted", report.Evicted).
			Int("kept", len(m.msgs)).
			Msg("memory trimmed")
	}
	if report.BudgetExceeded {
		m.logger.Warn().
			Int("token_total", tokenSum(m.msgs)).
			Msg("token budget exceeded by protected messages; keeping them")
	}
	return report
}

func tokenSum(msgs []model.Message) int {
	total := 0
	for _, m := range msgs {
		total += m.TokenCount
	}
	return total
}

// snapshotEnvelope is the serialized form handed to the store.
type snapshotEnvelope struct {
	Messages []model.Message `json:"messages"`
}

// Persist serializes the current history and saves it under the identifier.
func (m *Memory) Persist(ctx context.Context, s store.Store, id string) error {
	data, err := json.Marshal(snapshotEnvelope{Messages: m.Snapshot()})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.Save(ctx, id, data); err != nil {
		return fmt.Errorf("persist memory %q: %w", id, err)
	}
	return nil
}

// Restore replaces the in-memory state with the stored snapshot.
// The swap happens atomically under the lock; a concurrent reader sees
// either the old state or the full restored state, never a partial one.
// A missing identifier surfaces store.ErrNotFound.
func (m *Memory) Restore(ctx context.Context, s store.Store, id string) error {
	data, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode snapshot %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = envelope.Messages
	m.applyPolicy()
	return nil
}
