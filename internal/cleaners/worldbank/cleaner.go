// Package worldbank cleans World Bank indicator records.
package worldbank

import (
	"context"
	"encoding/json"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	wb "github.com/sspi-index/sspi-engine/internal/collectors/worldbank"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

// Cleaner reads records shaped like worldbank.Record.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean keeps records with an alpha-3 country, a year and a value. The
// indicator name becomes the observation description.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)
	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r wb.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			b.Drop(domain.DropMalformed)
			continue
		}
		b.Add(cleaners.Row{
			Country:     b.Code(r.CountryISO3Code),
			Year:        r.Date,
			Value:       r.Value,
			Unit:        r.Unit,
			Description: r.Indicator.Value,
		})
	}
	return b.Result(), nil
}
