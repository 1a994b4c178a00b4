package memory

import (
	"context"
	"sync"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// Ensure RawStore implements the interface.
var _ driven.RawStore = (*RawStore)(nil)

type sourceKey struct {
	org   string
	query string
}

// RawStore is an in-memory implementation of driven.RawStore.
type RawStore struct {
	mu   sync.RWMutex
	docs map[sourceKey][]domain.RawDocument
	seen map[domain.DedupKey]bool
}

// NewRawStore creates a new in-memory raw store.
func NewRawStore() *RawStore {
	return &RawStore{
		docs: make(map[sourceKey][]domain.RawDocument),
		seen: make(map[domain.DedupKey]bool),
	}
}

// Insert appends documents whose dedup key is new.
func (s *RawStore) Insert(_ context.Context, docs []domain.RawDocument) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range docs {
		if d.PayloadHash == "" {
			d.PayloadHash = domain.HashPayload(d.Raw)
		}
		key := d.DedupKey()
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		sk := sourceKey{d.Source.OrganizationCode, d.Source.QueryCode}
		s.docs[sk] = append(s.docs[sk], d)
		n++
	}
	return n, nil
}

// Find returns a source query's documents in insertion order.
func (s *RawStore) Find(_ context.Context, org, query string) ([]domain.RawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.docs[sourceKey{org, query}]
	out := make([]domain.RawDocument, len(docs))
	copy(out, docs)
	return out, nil
}

// Count returns the number of documents of a source query.
func (s *RawStore) Count(_ context.Context, org, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[sourceKey{org, query}]), nil
}

// Delete removes a source query's documents.
func (s *RawStore) Delete(_ context.Context, org, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := sourceKey{org, query}
	docs := s.docs[sk]
	for _, d := range docs {
		delete(s.seen, d.DedupKey())
	}
	delete(s.docs, sk)
	return len(docs), nil
}
