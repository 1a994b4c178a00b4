package driven

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// Collector fetches the raw payloads of one source query.
// Each upstream provider (World Bank, UIS, SDG, ...) implements this interface.
type Collector interface {
	// OrganizationCode identifies the upstream provider.
	OrganizationCode() string

	// Collect streams events as pages arrive. Sends block until the
	// consumer reads, so cancelling ctx stops the collector at the next
	// page boundary. A failure is sent on the error channel and no further
	// requests are made. Both channels are closed when collection ends.
	Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error)
}

// Cleaner turns the raw documents of one dataset into observations.
// Cleaners are pure: the same documents always yield the same result.
type Cleaner interface {
	Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error)
}

// DatasetAdapter pairs the collector and cleaner serving a dataset code.
type DatasetAdapter struct {
	Collector Collector
	Cleaner   Cleaner
}

// DatasetRegistrar accepts dataset registrations at load time.
type DatasetRegistrar interface {
	Register(code string, adapter DatasetAdapter) error
}
