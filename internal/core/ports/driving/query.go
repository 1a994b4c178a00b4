package driving

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// QueryService answers read-only questions about the data lake.
type QueryService interface {
	// Query returns rows of the clean or incomplete collection.
	Query(ctx context.Context, collection domain.Collection, filters domain.QueryFilters) (*domain.QueryResult, error)

	// QueryCountry returns every indicator observation of one country.
	QueryCountry(ctx context.Context, countryCode string) ([]domain.Observation, error)

	// Summary returns per-year score statistics of an indicator.
	Summary(ctx context.Context, indicatorCode string, filters domain.QueryFilters) ([]domain.ScoreSummary, error)
}
