// In-memory snapshot store.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions
package store

import (
	"context"
	"sync"
)

// InMemory implements Store using an in-memory map.
// Data is lost when the process terminates.
type InMemory struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewInMemory creates a new in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		snapshots: make(map[string][]byte),
	}
}

// Save stores a copy of the snapshot under the identifier.
func (s *InMemory) Save(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	s.snapshots[id] = copied
	return nil
}

// Load returns a copy of the snapshot for the identifier.
func (s *InMemory) Load(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Delete removes the snapshot for the identifier.
func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, id)
	return nil
}

// List returns all stored identifiers.
func (s *InMemory) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

// Verify InMemory implements Store
var _ Store = (*InMemory)(nil)
