package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("maps filters and returns rows", func(t *testing.T) {
		q := &mockQueryService{result: &domain.QueryResult{Observations: []domain.Observation{
			{CountryCode: "USA", Year: 2020, IndicatorCode: "FDEPTH", Value: 1},
		}}}
		server, err := newTestServer(q, nil)
		require.NoError(t, err)

		_, out, err := server.handleQuery(ctx, nil, QueryInput{
			CountryCodes:   []string{"usa"},
			IndicatorCodes: []string{"FDEPTH"},
			YearStart:      2000,
			YearEnd:        2020,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.CollectionClean, q.collection)
		assert.Equal(t, []string{"USA"}, q.filters.CountryCodes)
		assert.Equal(t, 2000, q.filters.YearRangeStart)
		assert.Equal(t, 1, out.Count)
		assert.False(t, out.Truncated)
	})

	t.Run("incomplete collection", func(t *testing.T) {
		q := &mockQueryService{result: &domain.QueryResult{Incomplete: []domain.IncompleteObservation{
			{IndicatorCode: "PRISON", CountryCode: "FRA", Year: 2019, Missing: []string{"PRIPOP"}},
		}}}
		server, err := newTestServer(q, nil)
		require.NoError(t, err)

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Collection: "Incomplete"})
		require.NoError(t, err)
		assert.Equal(t, domain.CollectionIncomplete, q.collection)
		assert.Len(t, out.Incomplete, 1)
	})

	t.Run("limit truncates", func(t *testing.T) {
		rows := make([]domain.Observation, 5)
		q := &mockQueryService{result: &domain.QueryResult{Observations: rows}}
		server, err := newTestServer(q, nil)
		require.NoError(t, err)

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.True(t, out.Truncated)
	})

	t.Run("unknown collection", func(t *testing.T) {
		server, err := newTestServer(&mockQueryService{}, nil)
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Collection: "users"})
		assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		server, err := newTestServer(&mockQueryService{err: errors.New("query failed")}, nil)
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query failed")
	})
}

func TestServer_handleCountryAndSummary(t *testing.T) {
	ctx := context.Background()
	q := &mockQueryService{summary: []domain.ScoreSummary{{IndicatorCode: "FDEPTH", Year: 2020, Count: 3}}}
	server, err := newTestServer(q, nil)
	require.NoError(t, err)

	_, country, err := server.handleCountry(ctx, nil, CountryInput{CountryCode: "bra"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BRA"}, q.filters.CountryCodes)
	assert.Equal(t, 0, country.Count)
	assert.NotNil(t, country.Observations)

	_, summary, err := server.handleSummary(ctx, nil, SummaryInput{IndicatorCode: "FDEPTH", CountryGroup: "BRICS"})
	require.NoError(t, err)
	assert.Equal(t, "BRICS", q.filters.CountryGroup)
	require.Len(t, summary.Years, 1)
	assert.Equal(t, 3, summary.Years[0].Count)
}
