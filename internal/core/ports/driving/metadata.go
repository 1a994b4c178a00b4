package driving

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// MetadataService exposes the metadata registry.
type MetadataService interface {
	// Document returns metadata of a kind, optionally narrowed to one key.
	Document(kind domain.DocumentType, key string) (any, error)

	Indicator(code string) (domain.IndicatorDetail, error)
	Intermediate(code string) (domain.IntermediateDetail, error)
	Dataset(code string) (domain.DatasetDetail, error)
	CountryGroup(name string) (domain.CountryGroup, error)

	// PermitsCountry reports whether a code appears in any country group.
	PermitsCountry(code string) bool

	// Reload loads and swaps in a new metadata set.
	Reload(ctx context.Context) error
}
