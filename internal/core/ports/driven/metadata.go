package driven

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// MetadataSource loads metadata definitions (CSV and JSON files).
type MetadataSource interface {
	Load(ctx context.Context) (*domain.MetadataSet, error)
}

// MetadataStore persists the loaded metadata and observed year ranges.
type MetadataStore interface {
	// SaveMetadata replaces the stored metadata documents with set.
	SaveMetadata(ctx context.Context, set *domain.MetadataSet) error

	// SaveYearRange records the observed span of a dataset.
	SaveYearRange(ctx context.Context, datasetCode string, r domain.YearRange) error

	// YearRanges returns every recorded span keyed by dataset code.
	YearRanges(ctx context.Context) (map[string]domain.YearRange, error)
}
