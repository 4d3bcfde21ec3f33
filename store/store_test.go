package store

import (
	"context"
	"errors"
	"testing"
)

// exercise runs the shared Store contract against an implementation.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Save(ctx, "snap-1", []byte("first")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := s.Load(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("expected 'first', got %q", data)
	}

	// Save on an existing identifier replaces the snapshot.
	if err := s.Save(ctx, "snap-1", []byte("second")); err != nil {
		t.Fatalf("overwrite Save failed: %v", err)
	}
	data, err = s.Load(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Load after overwrite failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected 'second', got %q", data)
	}

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Save(ctx, "snap-2", []byte("other")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 identifiers, got %d", len(ids))
	}

	if err := s.Delete(ctx, "snap-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "snap-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	exercise(t, NewInMemory())
}

func TestSqliteStore(t *testing.T) {
	s, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	exercise(t, s)
}

func TestInMemoryStoreIsolatesStoredBytes(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	data := []byte("original")
	if err := s.Save(ctx, "snap", data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data[0] = 'X'

	loaded, err := s.Load(ctx, "snap")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != "original" {
		t.Errorf("stored bytes were mutated: %q", loaded)
	}
}
