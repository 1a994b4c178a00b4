package driven

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// RawStore persists raw documents. Documents are never updated in place.
type RawStore interface {
	// Insert appends docs, skipping any whose dedup key already exists.
	// Returns the number of documents actually inserted.
	Insert(ctx context.Context, docs []domain.RawDocument) (int, error)

	// Find returns a source query's documents in insertion order.
	Find(ctx context.Context, organizationCode, queryCode string) ([]domain.RawDocument, error)

	// Count returns the number of documents stored for a source query.
	Count(ctx context.Context, organizationCode, queryCode string) (int, error)

	// Delete removes a source query's documents and returns how many went.
	Delete(ctx context.Context, organizationCode, queryCode string) (int, error)
}
