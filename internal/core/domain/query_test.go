package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryFilters(t *testing.T) {
	t.Run("repeated and comma separated values", func(t *testing.T) {
		f, err := ParseQueryFilters(map[string][]string{
			"CountryCode":   {"usa,CAN", "MEX"},
			"IndicatorCode": {"FDEPTH"},
			"Year":          {"2019,2020"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"USA", "CAN", "MEX"}, f.CountryCodes)
		assert.Equal(t, []string{"FDEPTH"}, f.IndicatorCodes)
		assert.Equal(t, []int{2019, 2020}, f.Years)
		assert.False(t, f.Unordered)
	})

	t.Run("year range and order", func(t *testing.T) {
		f, err := ParseQueryFilters(map[string][]string{
			"YearRangeStart": {"2000"},
			"YearRangeEnd":   {"2010"},
			"Order":          {"none"},
		})

		require.NoError(t, err)
		assert.Equal(t, 2000, f.YearRangeStart)
		assert.Equal(t, 2010, f.YearRangeEnd)
		assert.True(t, f.Unordered)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := ParseQueryFilters(map[string][]string{
			"YearRangeStart": {"2010"},
			"YearRangeEnd":   {"2000"},
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non numeric year", func(t *testing.T) {
		_, err := ParseQueryFilters(map[string][]string{"Year": {"twenty"}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestParseQueryFilters_RejectsUnsafeInput(t *testing.T) {
	unsafe := []map[string][]string{
		{"CountryCode": {"USA;DROP TABLE"}},
		{"IndicatorCode": {"$where"}},
		{"CountryCode": {"US A"}},
		{"Country Code": {"USA"}},
		{"DatasetCode": {"WB.DRKWAT"}},
		{"IndicatorCode": {"{\"$gt\":\"\"}"}},
		{"Year": {"2020'"}},
	}

	for _, params := range unsafe {
		_, err := ParseQueryFilters(params)
		assert.ErrorIs(t, err, ErrUnsafeFilter, "params %v", params)
	}
}

func TestIsSafeFilterValue(t *testing.T) {
	assert.True(t, IsSafeFilterValue(""))
	assert.True(t, IsSafeFilterValue("SSPI67"))
	assert.True(t, IsSafeFilterValue("USA,CAN&MEX"))
	assert.True(t, IsSafeFilterValue("WB_DRKWAT"))
	assert.False(t, IsSafeFilterValue("a-b"))
	assert.False(t, IsSafeFilterValue("a.b"))
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("clean")
	require.NoError(t, err)
	assert.Equal(t, CollectionClean, c)

	_, err = ParseCollection("users")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestQueryFilters_Match(t *testing.T) {
	usa := Observation{CountryCode: "USA", Year: 2015, IndicatorCode: "FDEPTH", Value: 0.5}
	can := Observation{CountryCode: "CAN", Year: 2020, DatasetCode: "WB_CREDIT", Value: 80}

	tests := []struct {
		name    string
		filters QueryFilters
		usa     bool
		can     bool
	}{
		{"empty matches all", QueryFilters{}, true, true},
		{"country", QueryFilters{CountryCodes: []string{"CAN"}}, false, true},
		{"indicator", QueryFilters{IndicatorCodes: []string{"FDEPTH"}}, true, false},
		{"classifiers are alternatives", QueryFilters{IndicatorCodes: []string{"FDEPTH"}, DatasetCodes: []string{"WB_CREDIT"}}, true, true},
		{"year list", QueryFilters{Years: []int{2020}}, false, true},
		{"range start", QueryFilters{YearRangeStart: 2016}, false, true},
		{"range end", QueryFilters{YearRangeEnd: 2015}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usa, tt.filters.Match(usa))
			assert.Equal(t, tt.can, tt.filters.Match(can))
		})
	}
}

func TestQueryFilters_MatchIncomplete(t *testing.T) {
	row := IncompleteObservation{
		IndicatorCode: "FDEPTH",
		CountryCode:   "USA",
		Year:          2019,
		Intermediates: map[string]float64{"CREDIT": 50},
		Missing:       []string{"DPOSIT"},
	}

	assert.True(t, QueryFilters{}.MatchIncomplete(row))
	assert.True(t, QueryFilters{IndicatorCodes: []string{"FDEPTH"}}.MatchIncomplete(row))
	assert.True(t, QueryFilters{IntermediateCodes: []string{"DPOSIT"}}.MatchIncomplete(row))
	assert.True(t, QueryFilters{IntermediateCodes: []string{"CREDIT"}}.MatchIncomplete(row))
	assert.False(t, QueryFilters{DatasetCodes: []string{"WB_CREDIT"}}.MatchIncomplete(row))
	assert.False(t, QueryFilters{CountryCodes: []string{"CAN"}}.MatchIncomplete(row))
}
