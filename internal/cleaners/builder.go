package cleaners

import (
	"strings"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Row is one candidate observation as read from a raw record. Country
// must already be resolved; an empty Country is dropped as invalid.
type Row struct {
	Country     string
	Year        any
	Value       any
	Unit        string
	Description string
}

// Builder accumulates observations and drop counts for one dataset.
type Builder struct {
	dataset  domain.DatasetDetail
	resolver *countries.Resolver
	obs      []domain.Observation
	dropped  map[domain.DropReason]int
}

// NewBuilder starts a result for dataset. A nil resolver uses the default.
func NewBuilder(dataset domain.DatasetDetail, resolver *countries.Resolver) *Builder {
	if resolver == nil {
		resolver = countries.Default()
	}
	return &Builder{
		dataset:  dataset,
		resolver: resolver,
		dropped:  make(map[domain.DropReason]int),
	}
}

// Resolver returns the country resolver in use.
func (b *Builder) Resolver() *countries.Resolver {
	return b.resolver
}

// Code normalises an upstream alpha-3 code. Only the shape is checked
// here; whether the code is admitted is decided when the partition is
// written, so that regional aggregates named in a country group survive.
func (b *Builder) Code(id string) string {
	code := strings.ToUpper(strings.TrimSpace(id))
	if !domain.IsAlpha3Shape(code) {
		return ""
	}
	return code
}

// Name resolves a country name, M49 code or alpha-3 code.
func (b *Builder) Name(name string) string {
	code, _ := b.resolver.Resolve(name)
	return code
}

// Drop counts a discarded record.
func (b *Builder) Drop(reason domain.DropReason) {
	b.dropped[reason]++
}

// Add validates r and appends it. It reports whether r was kept.
func (b *Builder) Add(r Row) bool {
	if r.Country == "" {
		b.Drop(domain.DropInvalidCountry)
		return false
	}
	year, ok := ParseYear(r.Year)
	if !ok {
		b.Drop(domain.DropInvalidYear)
		return false
	}
	value, err := ParseFloat(r.Value)
	if err != nil {
		b.Drop(DropReasonOf(err))
		return false
	}

	unit := r.Unit
	if unit == "" {
		unit = b.dataset.Unit
	}
	b.obs = append(b.obs, domain.Observation{
		CountryCode: r.Country,
		Year:        year,
		DatasetCode: b.dataset.DatasetCode,
		Value:       value,
		Unit:        unit,
		Description: strings.TrimSpace(r.Description),
		Source: &domain.SourceRef{
			OrganizationCode: b.dataset.Source.OrganizationCode,
			QueryCode:        b.dataset.Source.QueryCode,
		},
	})
	return true
}

// Result returns the accumulated result.
func (b *Builder) Result() domain.CleanResult {
	return domain.CleanResult{Observations: b.obs, Dropped: b.dropped}
}
