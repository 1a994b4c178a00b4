package httpapi

import (
	"context"
	"fmt"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

type fakeQuery struct {
	collection domain.Collection
	filters    domain.QueryFilters
	result     *domain.QueryResult
	country    []domain.Observation
	summary    []domain.ScoreSummary
	err        error
}

func (f *fakeQuery) Query(_ context.Context, c domain.Collection, filters domain.QueryFilters) (*domain.QueryResult, error) {
	f.collection, f.filters = c, filters
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &domain.QueryResult{Collection: c}, nil
	}
	return f.result, nil
}

func (f *fakeQuery) QueryCountry(_ context.Context, code string) ([]domain.Observation, error) {
	f.filters = domain.QueryFilters{CountryCodes: []string{code}}
	return f.country, f.err
}

func (f *fakeQuery) Summary(_ context.Context, code string, filters domain.QueryFilters) ([]domain.ScoreSummary, error) {
	filters.IndicatorCodes = []string{code}
	f.filters = filters
	return f.summary, f.err
}

type fakeMetadata struct {
	indicators map[string]domain.IndicatorDetail
	groups     map[string]domain.CountryGroup
}

func (f *fakeMetadata) Document(kind domain.DocumentType, key string) (any, error) {
	switch kind {
	case domain.DocCountryGroup:
		if key == "" {
			return f.groups, nil
		}
		g, ok := f.groups[key]
		if !ok {
			return nil, fmt.Errorf("%s %q: %w", kind, key, domain.ErrNotFound)
		}
		return g, nil
	case domain.DocIndicatorCodes:
		codes := []string{}
		for c := range f.indicators {
			codes = append(codes, c)
		}
		return codes, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, kind)
}

func (f *fakeMetadata) Indicator(code string) (domain.IndicatorDetail, error) {
	d, ok := f.indicators[code]
	if !ok {
		return d, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownIndicator, code))
	}
	return d, nil
}

func (f *fakeMetadata) Intermediate(string) (domain.IntermediateDetail, error) {
	return domain.IntermediateDetail{}, domain.ErrNotFound
}

func (f *fakeMetadata) Dataset(string) (domain.DatasetDetail, error) {
	return domain.DatasetDetail{}, domain.ErrNotFound
}

func (f *fakeMetadata) CountryGroup(name string) (domain.CountryGroup, error) {
	return f.groups[name], nil
}

func (f *fakeMetadata) PermitsCountry(string) bool { return true }

func (f *fakeMetadata) Reload(context.Context) error { return nil }

type fakeRunner struct {
	lines     []string
	err       error
	principal domain.Principal
	op        domain.Operation
	deleted   string
}

func (f *fakeRunner) Stream(_ context.Context, p domain.Principal, op domain.Operation) (<-chan string, error) {
	f.principal, f.op = p, op
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan string, len(f.lines))
	for _, l := range f.lines {
		out <- l
	}
	close(out)
	return out, nil
}

func (f *fakeRunner) DeleteSeries(_ context.Context, p domain.Principal, c domain.Collection, code string) (*domain.DeleteReport, error) {
	f.principal = p
	f.deleted = string(c) + "/" + code
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DeleteReport{Collection: c, Code: code, Raw: 3}, nil
}

type fakeJobs struct {
	status *domain.JobStatus
	err    error
}

func (f *fakeJobs) EnqueueRebuild(_ context.Context, p domain.Principal, code string) (*domain.JobStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.JobStatus{ID: "j1", IndicatorCode: code, RequestedBy: p.Username, State: domain.JobPending}, nil
}

func (f *fakeJobs) JobStatus(_ context.Context, id string) (*domain.JobStatus, error) {
	if f.status == nil || f.status.ID != id {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return f.status, nil
}
