package mcp

import (
	"context"
	"fmt"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result     *domain.QueryResult
	country    []domain.Observation
	summary    []domain.ScoreSummary
	err        error
	collection domain.Collection
	filters    domain.QueryFilters
}

func (m *mockQueryService) Query(_ context.Context, c domain.Collection, f domain.QueryFilters) (*domain.QueryResult, error) {
	m.collection, m.filters = c, f
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.QueryResult{Collection: c}, nil
	}
	return m.result, nil
}

func (m *mockQueryService) QueryCountry(_ context.Context, code string) ([]domain.Observation, error) {
	m.filters = domain.QueryFilters{CountryCodes: []string{code}}
	return m.country, m.err
}

func (m *mockQueryService) Summary(_ context.Context, code string, f domain.QueryFilters) ([]domain.ScoreSummary, error) {
	f.IndicatorCodes = []string{code}
	m.filters = f
	return m.summary, m.err
}

// mockMetadataService is a mock implementation of driving.MetadataService.
type mockMetadataService struct {
	indicators []domain.IndicatorDetail
	groups     []domain.CountryGroup
}

func (m *mockMetadataService) Document(kind domain.DocumentType, _ string) (any, error) {
	if kind == domain.DocIndicatorDetail {
		return m.indicators, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockMetadataService) Indicator(code string) (domain.IndicatorDetail, error) {
	for _, d := range m.indicators {
		if d.IndicatorCode == code {
			return d, nil
		}
	}
	return domain.IndicatorDetail{}, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownIndicator, code))
}

func (m *mockMetadataService) Intermediate(string) (domain.IntermediateDetail, error) {
	return domain.IntermediateDetail{}, domain.ErrNotFound
}

func (m *mockMetadataService) Dataset(string) (domain.DatasetDetail, error) {
	return domain.DatasetDetail{}, domain.ErrNotFound
}

func (m *mockMetadataService) CountryGroup(name string) (domain.CountryGroup, error) {
	for _, g := range m.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return domain.CountryGroup{}, errkind.Query.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownCountryGroup, name))
}

func (m *mockMetadataService) PermitsCountry(string) bool { return true }

func (m *mockMetadataService) Reload(context.Context) error { return nil }

func newTestServer(q *mockQueryService, md *mockMetadataService) (*Server, error) {
	if md == nil {
		md = &mockMetadataService{}
	}
	return NewServer(&Ports{Query: q, Metadata: md})
}
