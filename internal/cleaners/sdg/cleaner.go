// Package sdg cleans UN SDG indicator records.
package sdg

import (
	"context"
	"encoding/json"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	source "github.com/sspi-index/sspi-engine/internal/collectors/sdg"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

// Cleaner reads records shaped like sdg.Record. When the dataset binding
// names a series, records of other series are dropped as filtered.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean resolves the padded M49 area code of each record. The dataset
// unit wins over the record's Units attribute.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)
	series := dataset.Source.Param("series", "")

	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r source.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			b.Drop(domain.DropMalformed)
			continue
		}
		if series != "" && r.Series != series {
			b.Drop(domain.DropFiltered)
			continue
		}
		country, _ := b.Resolver().FromM49(r.GeoAreaCode)
		unit := dataset.Unit
		if unit == "" {
			unit = r.Attributes["Units"]
		}
		b.Add(cleaners.Row{
			Country:     country,
			Year:        r.TimePeriodStart,
			Value:       r.Value,
			Unit:        unit,
			Description: r.SeriesDescription,
		})
	}
	return b.Result(), nil
}
