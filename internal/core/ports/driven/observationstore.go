package driven

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// ObservationStore persists the clean and incomplete collections.
type ObservationStore interface {
	// Replace deletes every observation of classifier and inserts obs in
	// one transaction. All obs must carry classifier.
	Replace(ctx context.Context, classifier domain.Classifier, obs []domain.Observation) error

	// Find returns observations matching filters. CountryGroup must already
	// be expanded into CountryCodes by the caller.
	Find(ctx context.Context, filters domain.QueryFilters) ([]domain.Observation, error)

	// Delete removes every observation of classifier.
	Delete(ctx context.Context, classifier domain.Classifier) (int, error)

	// ReplaceIncomplete swaps the incomplete partition of an indicator.
	ReplaceIncomplete(ctx context.Context, indicatorCode string, obs []domain.IncompleteObservation) error

	// FindIncomplete returns incomplete observations matching filters.
	FindIncomplete(ctx context.Context, filters domain.QueryFilters) ([]domain.IncompleteObservation, error)

	// DeleteIncomplete removes the incomplete partition of an indicator.
	DeleteIncomplete(ctx context.Context, indicatorCode string) (int, error)
}
