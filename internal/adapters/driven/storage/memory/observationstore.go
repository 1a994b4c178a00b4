package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// Ensure ObservationStore implements the interface.
var _ driven.ObservationStore = (*ObservationStore)(nil)

// ObservationStore is an in-memory implementation of driven.ObservationStore.
// Partitions are keyed by classifier; rows within a partition are keyed by
// (CountryCode, Year).
type ObservationStore struct {
	mu         sync.RWMutex
	partitions map[domain.Classifier][]domain.Observation
	incomplete map[string][]domain.IncompleteObservation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		partitions: make(map[domain.Classifier][]domain.Observation),
		incomplete: make(map[string][]domain.IncompleteObservation),
	}
}

// Replace swaps a classifier's partition. Invalid input leaves the
// previous partition untouched.
func (s *ObservationStore) Replace(_ context.Context, c domain.Classifier, obs []domain.Observation) error {
	type key struct {
		country string
		year    int
	}
	seen := make(map[key]bool, len(obs))
	rows := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return errkind.Integrity.Wrap(err)
		}
		if got, _ := o.Classifier(); got != c {
			return errkind.Integrity.Wrap(fmt.Errorf("%w: %s written to %s", domain.ErrClassifier, got, c))
		}
		k := key{o.CountryCode, o.Year}
		if seen[k] {
			return errkind.Integrity.New("duplicate %s/%d in %s", o.CountryCode, o.Year, c)
		}
		seen[k] = true
		rows = append(rows, o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		delete(s.partitions, c)
		return nil
	}
	s.partitions[c] = rows
	return nil
}

// Find returns matching observations ordered by (CountryCode, Year)
// unless filters opt out.
func (s *ObservationStore) Find(_ context.Context, f domain.QueryFilters) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Observation
	for _, rows := range s.partitions {
		for _, o := range rows {
			if f.Match(o) {
				out = append(out, o)
			}
		}
	}
	if !f.Unordered {
		domain.SortObservations(out)
	}
	return out, nil
}

// Delete removes a classifier's partition.
func (s *ObservationStore) Delete(_ context.Context, c domain.Classifier) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.partitions[c])
	delete(s.partitions, c)
	return n, nil
}

// ReplaceIncomplete swaps an indicator's incomplete partition.
func (s *ObservationStore) ReplaceIncomplete(_ context.Context, indicatorCode string, obs []domain.IncompleteObservation) error {
	rows := make([]domain.IncompleteObservation, len(obs))
	copy(rows, obs)
	for i := range rows {
		rows[i].IndicatorCode = indicatorCode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		delete(s.incomplete, indicatorCode)
		return nil
	}
	s.incomplete[indicatorCode] = rows
	return nil
}

// FindIncomplete returns matching incomplete observations.
func (s *ObservationStore) FindIncomplete(_ context.Context, f domain.QueryFilters) ([]domain.IncompleteObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.IncompleteObservation
	for _, rows := range s.incomplete {
		for _, o := range rows {
			if f.MatchIncomplete(o) {
				out = append(out, o)
			}
		}
	}
	if !f.Unordered {
		domain.SortIncomplete(out)
	}
	return out, nil
}

// DeleteIncomplete removes an indicator's incomplete partition.
func (s *ObservationStore) DeleteIncomplete(_ context.Context, indicatorCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.incomplete[indicatorCode])
	delete(s.incomplete, indicatorCode)
	return n, nil
}
