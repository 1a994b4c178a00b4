package driving

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// ScoringService composes indicator scores from clean data.
type ScoringService interface {
	// ScoreIndicator derives intermediates, zips them and replaces the
	// indicator's clean and incomplete partitions.
	ScoreIndicator(ctx context.Context, indicatorCode string) (*domain.ScoreReport, error)
}
