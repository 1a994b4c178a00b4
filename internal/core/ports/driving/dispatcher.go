package driving

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// Dispatcher routes dataset operations to the registered adapters.
type Dispatcher interface {
	// Collect streams progress messages while raw documents are stored.
	// Unknown codes and missing bindings fail before the stream starts.
	// An upstream failure is reported as an error line and ends the stream.
	Collect(ctx context.Context, datasetCode string, cc domain.CollectContext) (<-chan string, error)

	// Clean rebuilds the clean partition of a dataset from its raw documents.
	Clean(ctx context.Context, datasetCode string) (*CleanSummary, error)

	// ListDatasets returns the registered dataset codes, sorted.
	ListDatasets() []string

	// DependenciesOf returns the datasets an indicator reads, sorted.
	DependenciesOf(indicatorCode string) ([]string, error)
}

// CleanSummary describes one clean run.
type CleanSummary struct {
	DatasetCode  string
	Observations []domain.Observation
	Dropped      map[domain.DropReason]int
	Range        *domain.YearRange
}
