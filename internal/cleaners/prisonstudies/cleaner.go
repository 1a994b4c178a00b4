// Package prisonstudies cleans World Prison Brief trend table rows.
package prisonstudies

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	source "github.com/sspi-index/sspi-engine/internal/collectors/prisonstudies"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

// Cleaner reads prisonstudies.Record rows. The binding's "column"
// parameter selects the total or the rate column.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean resolves the country from its name, falling back to the page
// slug, and reads the selected column.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)
	column := dataset.Source.Param("column", source.ColumnTotal)

	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r source.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			b.Drop(domain.DropMalformed)
			continue
		}

		country := b.Name(r.Country)
		if country == "" && r.Slug != "" {
			country = b.Name(strings.ReplaceAll(r.Slug, "-", " "))
		}
		value := r.Total
		if column == source.ColumnRate {
			value = r.Rate
		}
		b.Add(cleaners.Row{Country: country, Year: r.Year, Value: value})
	}
	return b.Result(), nil
}
