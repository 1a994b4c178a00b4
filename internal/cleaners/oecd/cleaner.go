// Package oecd cleans flattened OECD SDMX observations.
package oecd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	source "github.com/sspi-index/sspi-engine/internal/collectors/oecd"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Cleaner implements the interface.
var _ driven.Cleaner = (*Cleaner)(nil)

const dimensionPrefix = "dim."

// Cleaner reads oecd.Record documents. Binding parameters named
// "dim.<ID>" keep only observations whose dimension ID has that value.
type Cleaner struct {
	resolver *countries.Resolver
}

// New creates a cleaner. A nil resolver uses the default.
func New(resolver *countries.Resolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean reads the reference area and time period dimensions of each
// observation. Records without dimensions are dropped as malformed.
func (c *Cleaner) Clean(ctx context.Context, dataset domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	b := cleaners.NewBuilder(dataset, c.resolver)

	filters := map[string]string{}
	for k, v := range dataset.Source.Params {
		if id, ok := strings.CutPrefix(k, dimensionPrefix); ok {
			filters[id] = v
		}
	}

	for _, doc := range raws {
		if err := ctx.Err(); err != nil {
			return domain.CleanResult{}, err
		}
		var r source.Record
		if err := json.Unmarshal(doc.Raw, &r); err != nil || r.Dimensions == nil {
			b.Drop(domain.DropMalformed)
			continue
		}
		if !matches(r.Dimensions, filters) {
			b.Drop(domain.DropFiltered)
			continue
		}
		b.Add(cleaners.Row{
			Country: b.Code(r.Dimensions[source.DimensionArea]),
			Year:    r.Dimensions[source.DimensionTime],
			Value:   r.Value,
		})
	}
	return b.Result(), nil
}

func matches(dims, filters map[string]string) bool {
	for id, want := range filters {
		if dims[id] != want {
			return false
		}
	}
	return true
}
