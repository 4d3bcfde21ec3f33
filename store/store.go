// Package store provides persistent storage for memory snapshots.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when loading an identifier with no snapshot.
var ErrNotFound = errors.New("store: snapshot not found")

// Store persists serialized memory snapshots by identifier.
// Implementations can use different backends (memory, file, database).
type Store interface {
	// Save stores a serialized snapshot under the identifier,
	// replacing any prior snapshot.
	Save(ctx context.Context, id string, data []byte) error

	// Load returns the snapshot for the identifier.
	// Returns ErrNotFound if no snapshot exists.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes the snapshot for the identifier. Deleting a missing
	// identifier is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all stored identifiers.
	List(ctx context.Context) ([]string, error)
}
