// Package uis cleans UNESCO Institute for Statistics records.
package uis

import (
	"context"
	"encoding/json"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	source "github.com/sspi-index/sspi-engine/internal/collectors/uis"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

// Cleaner reads records shaped like uis.Record.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean keeps records with a geography code, a year and a value.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)
	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r source.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			b.Drop(domain.DropMalformed)
			continue
		}
		b.Add(cleaners.Row{
			Country:     b.Code(r.GeoUnit),
			Year:        r.Year,
			Value:       r.Value,
			Description: dataset.Description,
		})
	}
	return b.Result(), nil
}
