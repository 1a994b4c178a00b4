package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers read-only questions against the stores.
type QueryService struct {
	metadata *MetadataRegistry
	clean    driven.ObservationStore
}

// NewQueryService creates a query service.
func NewQueryService(metadata *MetadataRegistry, clean driven.ObservationStore) *QueryService {
	return &QueryService{metadata: metadata, clean: clean}
}

// Query returns rows of the clean or incomplete collection.
func (q *QueryService) Query(ctx context.Context, collection domain.Collection, filters domain.QueryFilters) (*domain.QueryResult, error) {
	if collection != domain.CollectionClean && collection != domain.CollectionIncomplete {
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: %q", domain.ErrUnknownCollection, collection))
	}
	filters, none, err := q.prepare(filters)
	if err != nil {
		return nil, err
	}

	res := &domain.QueryResult{Collection: collection}
	if none {
		return res, nil
	}
	if collection == domain.CollectionIncomplete {
		res.Incomplete, err = q.clean.FindIncomplete(ctx, filters)
	} else {
		res.Observations, err = q.clean.Find(ctx, filters)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return res, nil
}

// prepare validates filters and expands the country group. none is true
// when the group and the explicit countries do not intersect.
func (q *QueryService) prepare(f domain.QueryFilters) (_ domain.QueryFilters, none bool, _ error) {
	if err := checkFilters(f); err != nil {
		return f, false, err
	}
	if f.CountryGroup == "" {
		return f, false, nil
	}
	g, err := q.metadata.CountryGroup(f.CountryGroup)
	if err != nil {
		return f, false, err
	}
	members := g.Countries
	if len(f.CountryCodes) > 0 {
		in := make(map[string]bool, len(g.Countries))
		for _, c := range g.Countries {
			in[c] = true
		}
		members = nil
		for _, c := range f.CountryCodes {
			if in[c] {
				members = append(members, c)
			}
		}
	}
	f.CountryCodes = members
	f.CountryGroup = ""
	return f, len(members) == 0, nil
}

// checkFilters applies the filter alphabet to filters built in code
// rather than parsed from a request.
func checkFilters(f domain.QueryFilters) error {
	values := []string{f.CountryGroup}
	for _, list := range [][]string{f.CountryCodes, f.IndicatorCodes, f.DatasetCodes, f.IntermediateCodes} {
		values = append(values, list...)
	}
	for _, v := range values {
		if !domain.IsSafeFilterValue(v) {
			return errkind.Query.Wrap(fmt.Errorf("%w: %q", domain.ErrUnsafeFilter, v))
		}
	}
	if f.YearRangeStart != 0 && f.YearRangeEnd != 0 && f.YearRangeStart > f.YearRangeEnd {
		return errkind.Query.Wrap(fmt.Errorf("%w: year range %d-%d", domain.ErrInvalidInput, f.YearRangeStart, f.YearRangeEnd))
	}
	return nil
}

// QueryCountry returns every indicator observation of a country.
func (q *QueryService) QueryCountry(ctx context.Context, countryCode string) ([]domain.Observation, error) {
	if !domain.IsAlpha3Shape(countryCode) {
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: country code %q", domain.ErrInvalidInput, countryCode))
	}
	obs, err := q.clean.Find(ctx, domain.QueryFilters{CountryCodes: []string{countryCode}})
	if err != nil {
		return nil, fmt.Errorf("query country %s: %w", countryCode, err)
	}
	out := obs[:0]
	for _, o := range obs {
		if o.IndicatorCode != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

// Summary returns per-year statistics of an indicator's scores across
// the countries selected by filters.
func (q *QueryService) Summary(ctx context.Context, indicatorCode string, filters domain.QueryFilters) ([]domain.ScoreSummary, error) {
	if _, err := q.metadata.Indicator(indicatorCode); err != nil {
		return nil, err
	}
	filters.IndicatorCodes = []string{indicatorCode}
	filters.DatasetCodes, filters.IntermediateCodes = nil, nil
	filters, none, err := q.prepare(filters)
	if err != nil || none {
		return nil, err
	}
	obs, err := q.clean.Find(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", indicatorCode, err)
	}

	byYear := map[int][]float64{}
	for _, o := range obs {
		if o.Score != nil {
			byYear[o.Year] = append(byYear[o.Year], *o.Score)
		}
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]domain.ScoreSummary, 0, len(years))
	for _, y := range years {
		x := byYear[y]
		sort.Float64s(x)
		mean, std := stat.MeanStdDev(x, nil)
		if len(x) < 2 || math.IsNaN(std) {
			std = 0
		}
		out = append(out, domain.ScoreSummary{
			IndicatorCode: indicatorCode,
			Year:          y,
			Count:         len(x),
			Mean:          mean,
			StdDev:        std,
			Min:           floats.Min(x),
			Median:        stat.Quantile(0.5, stat.Empirical, x, nil),
			Max:           floats.Max(x),
		})
	}
	return out, nil
}
