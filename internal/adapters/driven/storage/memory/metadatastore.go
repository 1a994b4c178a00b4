package memory

import (
	"context"
	"sync"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu     sync.RWMutex
	set    *domain.MetadataSet
	ranges map[string]domain.YearRange
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{ranges: make(map[string]domain.YearRange)}
}

// SaveMetadata replaces the stored set.
func (s *MetadataStore) SaveMetadata(_ context.Context, set *domain.MetadataSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	return nil
}

// Metadata returns the last saved set, or nil.
func (s *MetadataStore) Metadata() *domain.MetadataSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// SaveYearRange records a dataset's span.
func (s *MetadataStore) SaveYearRange(_ context.Context, code string, r domain.YearRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[code] = r
	return nil
}

// YearRanges returns a copy of every recorded span.
func (s *MetadataStore) YearRanges(_ context.Context) (map[string]domain.YearRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.YearRange, len(s.ranges))
	for k, v := range s.ranges {
		out[k] = v
	}
	return out, nil
}
