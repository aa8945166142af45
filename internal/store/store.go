package store

import (
	"context"
	"fmt"
	"strconv"
)

// Document is the unit of storage: a text blob, its embedding, and a stable
// identifier. Identifiers are the decimal zero-based position of the document
// within its stream for the current indexing run, and double as overwrite
// keys in the store.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
}

// Store persists documents with overwrite-by-id semantics: writing a document
// whose id already exists replaces it in place.
type Store interface {
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, ids []string) error
	Write(ctx context.Context, docs []Document) error
}

// Reset deletes every document left over from the previous run. Because ids
// are positional, a shorter run would otherwise leave stale documents beyond
// the new count, so a reset is a correctness requirement before any write.
// Resetting an empty store is a no-op.
func Reset(ctx context.Context, s Store) error {
	count, err := s.Count(ctx)
	if err != nil {
		return fmt.Errorf("count documents failed: %w", err)
	}
	if count == 0 {
		return nil
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	if err := s.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete documents failed: %w", err)
	}
	return nil
}
