package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/scoring"
)

// Ensure MetadataRegistry implements the interface.
var _ driving.MetadataService = (*MetadataRegistry)(nil)

// MetadataRegistry holds the loaded metadata hierarchy in memory. Reads
// take a shared lock; Load swaps the whole snapshot under the write lock.
type MetadataRegistry struct {
	source driven.MetadataSource
	store  driven.MetadataStore

	mu   sync.RWMutex
	snap *metadataSnapshot
}

type metadataSnapshot struct {
	set           *domain.MetadataSet
	pillars       map[string]domain.PillarDetail
	categories    map[string]domain.CategoryDetail
	indicators    map[string]domain.IndicatorDetail
	intermediates map[string]domain.IntermediateDetail
	datasets      map[string]domain.DatasetDetail
	groups        map[string]domain.CountryGroup
	permitted     map[string]bool
	functions     map[string]indicatorFunctions
	ranges        map[string]domain.YearRange
}

type indicatorFunctions struct {
	score *scoring.Expression
	value *scoring.Expression
}

// NewMetadataRegistry creates an empty registry. store may be nil.
func NewMetadataRegistry(source driven.MetadataSource, store driven.MetadataStore) *MetadataRegistry {
	return &MetadataRegistry{
		source: source,
		store:  store,
		snap:   emptySnapshot(),
	}
}

func emptySnapshot() *metadataSnapshot {
	return &metadataSnapshot{
		set:           &domain.MetadataSet{},
		pillars:       map[string]domain.PillarDetail{},
		categories:    map[string]domain.CategoryDetail{},
		indicators:    map[string]domain.IndicatorDetail{},
		intermediates: map[string]domain.IntermediateDetail{},
		datasets:      map[string]domain.DatasetDetail{},
		groups:        map[string]domain.CountryGroup{},
		permitted:     map[string]bool{},
		functions:     map[string]indicatorFunctions{},
		ranges:        map[string]domain.YearRange{},
	}
}

// Reload loads a fresh set from the source and swaps it in.
func (r *MetadataRegistry) Reload(ctx context.Context) error {
	if r.source == nil {
		return errkind.Configuration.New("metadata source not configured")
	}
	set, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading metadata: %w", err)
	}
	return r.Load(ctx, set)
}

// Load validates set, compiles its score functions and swaps it in. On
// any failure the previous snapshot stays active.
func (r *MetadataRegistry) Load(ctx context.Context, set *domain.MetadataSet) error {
	if err := set.Validate(); err != nil {
		return errkind.Configuration.Wrap(err)
	}
	snap, err := buildSnapshot(set)
	if err != nil {
		return errkind.Configuration.Wrap(err)
	}

	if r.store != nil {
		if err := r.store.SaveMetadata(ctx, set); err != nil {
			return fmt.Errorf("persisting metadata: %w", err)
		}
		ranges, err := r.store.YearRanges(ctx)
		if err != nil {
			return fmt.Errorf("reading year ranges: %w", err)
		}
		for code, yr := range ranges {
			snap.ranges[code] = yr
		}
	} else {
		r.mu.RLock()
		for code, yr := range r.snap.ranges {
			snap.ranges[code] = yr
		}
		r.mu.RUnlock()
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	logger.Info("metadata loaded: %d indicators, %d intermediates, %d datasets, %d country groups",
		len(set.Indicators), len(set.Intermediates), len(set.Datasets), len(set.CountryGroups))
	return nil
}

func buildSnapshot(set *domain.MetadataSet) (*metadataSnapshot, error) {
	s := emptySnapshot()
	s.set = set
	for _, p := range set.Pillars {
		s.pillars[p.PillarCode] = p
	}
	for _, c := range set.Categories {
		s.categories[c.CategoryCode] = c
	}
	for _, i := range set.Intermediates {
		s.intermediates[i.IntermediateCode] = i
	}
	for _, d := range set.Datasets {
		s.datasets[d.DatasetCode] = d
	}
	for _, g := range set.CountryGroups {
		s.groups[g.Name] = g
		for _, c := range g.Countries {
			s.permitted[c] = true
		}
	}
	for _, ind := range set.Indicators {
		s.indicators[ind.IndicatorCode] = ind
		if !ind.IsComposite() {
			continue
		}
		fns, err := compileFunctions(ind)
		if err != nil {
			return nil, fmt.Errorf("indicator %s: %w", ind.IndicatorCode, err)
		}
		s.functions[ind.IndicatorCode] = fns
	}
	return s, nil
}

func compileFunctions(ind domain.IndicatorDetail) (indicatorFunctions, error) {
	var (
		fns indicatorFunctions
		err error
	)
	if ind.ScoreFunction != "" {
		fns.score, err = scoring.Compile(ind.ScoreFunction, ind.IntermediateCodes)
	} else {
		fns.score, err = scoring.Mean(ind.IntermediateCodes)
	}
	if err != nil {
		return fns, err
	}
	if ind.ValueFunction != "" {
		if fns.value, err = scoring.Compile(ind.ValueFunction, ind.IntermediateCodes); err != nil {
			return fns, err
		}
	}
	return fns, nil
}

func (r *MetadataRegistry) current() *metadataSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Indicator returns an indicator's detail.
func (r *MetadataRegistry) Indicator(code string) (domain.IndicatorDetail, error) {
	d, ok := r.current().indicators[code]
	if !ok {
		return d, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownIndicator, code))
	}
	return d, nil
}

// Intermediate returns an intermediate's detail.
func (r *MetadataRegistry) Intermediate(code string) (domain.IntermediateDetail, error) {
	d, ok := r.current().intermediates[code]
	if !ok {
		return d, fmt.Errorf("intermediate %s: %w", code, domain.ErrNotFound)
	}
	return d, nil
}

// Dataset returns a dataset's detail with its recorded year range.
func (r *MetadataRegistry) Dataset(code string) (domain.DatasetDetail, error) {
	snap := r.current()
	d, ok := snap.datasets[code]
	if !ok {
		return d, fmt.Errorf("dataset %s: %w", code, domain.ErrNotFound)
	}
	if yr, ok := snap.ranges[code]; ok {
		d.MinYear, d.MaxYear = yr.MinYear, yr.MaxYear
	}
	return d, nil
}

// CountryGroup returns a named group.
func (r *MetadataRegistry) CountryGroup(name string) (domain.CountryGroup, error) {
	g, ok := r.current().groups[name]
	if !ok {
		return g, errkind.Query.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownCountryGroup, name))
	}
	return g, nil
}

// PermitsCountry reports whether code belongs to any country group.
func (r *MetadataRegistry) PermitsCountry(code string) bool {
	return r.current().permitted[code]
}

// ZipSpec assembles the composition of a composite indicator.
func (r *MetadataRegistry) ZipSpec(code string) (scoring.ZipSpec, error) {
	snap := r.current()
	ind, ok := snap.indicators[code]
	if !ok {
		return scoring.ZipSpec{}, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownIndicator, code))
	}
	fns, ok := snap.functions[code]
	if !ok {
		return scoring.ZipSpec{}, errkind.Configuration.New("indicator %s has no intermediates", code)
	}
	unit := ind.Unit
	if ind.UnitFunction != "" {
		unit = ind.UnitFunction
	}
	return scoring.ZipSpec{
		IndicatorCode: code,
		Intermediates: append([]string(nil), ind.IntermediateCodes...),
		Mode:          ind.Mode(),
		Score:         fns.score,
		Value:         fns.value,
		Unit:          unit,
		Goalposts:     ind.Goalposts(),
		Inverted:      ind.Inverted,
	}, nil
}

// RecordYearRange stores the observed span of a dataset.
func (r *MetadataRegistry) RecordYearRange(ctx context.Context, code string, yr domain.YearRange) error {
	r.mu.Lock()
	next := *r.snap
	next.ranges = make(map[string]domain.YearRange, len(r.snap.ranges)+1)
	for k, v := range r.snap.ranges {
		next.ranges[k] = v
	}
	next.ranges[code] = yr
	r.snap = &next
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.SaveYearRange(ctx, code, yr); err != nil {
		return fmt.Errorf("saving year range of %s: %w", code, err)
	}
	return nil
}

// Document returns metadata of kind. An empty key lists the kind.
func (r *MetadataRegistry) Document(kind domain.DocumentType, key string) (any, error) {
	snap := r.current()
	notFound := func() error {
		return fmt.Errorf("%s %q: %w", kind, key, domain.ErrNotFound)
	}

	switch kind {
	case domain.DocPillarCodes:
		return sortedKeys(snap.pillars), nil
	case domain.DocCategoryCodes:
		return sortedKeys(snap.categories), nil
	case domain.DocIndicatorCodes:
		return sortedKeys(snap.indicators), nil
	case domain.DocIntermediateCodes:
		return sortedKeys(snap.intermediates), nil
	case domain.DocDatasetCodes:
		return sortedKeys(snap.datasets), nil
	case domain.DocPillarDetail:
		return lookupOrList(snap.pillars, key, notFound)
	case domain.DocCategoryDetail:
		return lookupOrList(snap.categories, key, notFound)
	case domain.DocIndicatorDetail:
		return lookupOrList(snap.indicators, key, notFound)
	case domain.DocIntermediateDetail:
		return lookupOrList(snap.intermediates, key, notFound)
	case domain.DocDatasetDetail:
		if key != "" {
			d, err := r.Dataset(key)
			if err != nil {
				return nil, notFound()
			}
			return d, nil
		}
		out := make([]domain.DatasetDetail, 0, len(snap.datasets))
		for _, code := range sortedKeys(snap.datasets) {
			d, _ := r.Dataset(code)
			out = append(out, d)
		}
		return out, nil
	case domain.DocCountryGroup:
		return lookupOrList(snap.groups, key, notFound)
	}
	return nil, fmt.Errorf("%w: metadata kind %q", domain.ErrNotFound, kind)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupOrList[V any](m map[string]V, key string, notFound func() error) (any, error) {
	if key != "" {
		v, ok := m[key]
		if !ok {
			return nil, notFound()
		}
		return v, nil
	}
	out := make([]V, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out, nil
}
