// Package iea cleans International Energy Agency records.
package iea

import (
	"context"
	"encoding/json"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	source "github.com/sspi-index/sspi-engine/internal/collectors/iea"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

// Cleaner reads records shaped like iea.Record. Records for a product
// other than the binding's "product" parameter are dropped as filtered.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean keeps records with a resolvable country, a year and a value,
// taking the unit from the record.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)
	product := dataset.Source.Param("product", "")

	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r source.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			b.Drop(domain.DropMalformed)
			continue
		}
		if product != "" && r.Product != product {
			b.Drop(domain.DropFiltered)
			continue
		}
		b.Add(cleaners.Row{
			Country: r.CountryCode(b.Resolver()),
			Year:    r.Year,
			Value:   r.Value,
			Unit:    r.Units,
		})
	}
	return b.Result(), nil
}
