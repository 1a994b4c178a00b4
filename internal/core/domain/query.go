package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Collection names a queryable store partition.
type Collection string

const (
	CollectionRaw        Collection = "raw"
	CollectionClean      Collection = "clean"
	CollectionIncomplete Collection = "incomplete"
)

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	switch Collection(s) {
	case CollectionRaw, CollectionClean, CollectionIncomplete:
		return Collection(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// safeFilter is the only alphabet accepted in filter keys and values.
var safeFilter = regexp.MustCompile(`^[A-Za-z0-9_&,]*$`)

// IsSafeFilterValue reports whether s may be used as a filter key or value.
func IsSafeFilterValue(s string) bool {
	return safeFilter.MatchString(s)
}

// Filter parameter names.
const (
	FilterCountryCode      = "CountryCode"
	FilterCountryGroup     = "CountryGroup"
	FilterIndicatorCode    = "IndicatorCode"
	FilterDatasetCode      = "DatasetCode"
	FilterIntermediateCode = "IntermediateCode"
	FilterYear             = "Year"
	FilterYearRangeStart   = "YearRangeStart"
	FilterYearRangeEnd     = "YearRangeEnd"
	FilterOrder            = "Order"
)

// QueryFilters select observations. Empty fields do not constrain.
type QueryFilters struct {
	CountryCodes      []string
	CountryGroup      string
	IndicatorCodes    []string
	DatasetCodes      []string
	IntermediateCodes []string
	Years             []int
	YearRangeStart    int
	YearRangeEnd      int
	Unordered         bool
}

// HasClassifier reports whether any classifier filter is set.
func (f QueryFilters) HasClassifier() bool {
	return len(f.IndicatorCodes) > 0 || len(f.DatasetCodes) > 0 || len(f.IntermediateCodes) > 0
}

// ParseQueryFilters builds filters from URL-style parameters. Every key
// and value is checked against the safe alphabet before anything else.
// Values may repeat or be comma separated.
func ParseQueryFilters(params map[string][]string) (QueryFilters, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !IsSafeFilterValue(k) {
			return QueryFilters{}, fmt.Errorf("%w: parameter %q", ErrUnsafeFilter, k)
		}
		for _, v := range params[k] {
			if !IsSafeFilterValue(v) {
				return QueryFilters{}, fmt.Errorf("%w: %s=%q", ErrUnsafeFilter, k, v)
			}
		}
	}

	var f QueryFilters
	for _, k := range keys {
		values := splitValues(params[k])
		switch k {
		case FilterCountryCode:
			f.CountryCodes = upper(values)
		case FilterCountryGroup:
			if len(values) > 0 {
				f.CountryGroup = values[0]
			}
		case FilterIndicatorCode:
			f.IndicatorCodes = values
		case FilterDatasetCode:
			f.DatasetCodes = values
		case FilterIntermediateCode:
			f.IntermediateCodes = values
		case FilterYear:
			for _, v := range values {
				y, err := parseYearFilter(k, v)
				if err != nil {
					return QueryFilters{}, err
				}
				f.Years = append(f.Years, y)
			}
		case FilterYearRangeStart, FilterYearRangeEnd:
			if len(values) == 0 {
				continue
			}
			y, err := parseYearFilter(k, values[0])
			if err != nil {
				return QueryFilters{}, err
			}
			if k == FilterYearRangeStart {
				f.YearRangeStart = y
			} else {
				f.YearRangeEnd = y
			}
		case FilterOrder:
			f.Unordered = len(values) > 0 && strings.EqualFold(values[0], "none")
		}
	}
	if f.YearRangeStart != 0 && f.YearRangeEnd != 0 && f.YearRangeStart > f.YearRangeEnd {
		return QueryFilters{}, fmt.Errorf("%w: YearRangeStart %d after YearRangeEnd %d",
			ErrInvalidInput, f.YearRangeStart, f.YearRangeEnd)
	}
	return f, nil
}

func parseYearFilter(key, v string) (int, error) {
	y, err := strconv.Atoi(v)
	if err != nil || !ValidYear(y) {
		return 0, fmt.Errorf("%w: %s=%q is not a year", ErrInvalidInput, key, v)
	}
	return y, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func upper(values []string) []string {
	for i := range values {
		values[i] = strings.ToUpper(values[i])
	}
	return values
}

// QueryResult carries the rows of one collection.
type QueryResult struct {
	Collection   Collection              `json:"Collection"`
	Observations []Observation           `json:"Observations,omitempty"`
	Incomplete   []IncompleteObservation `json:"Incomplete,omitempty"`
}

// Count returns the number of rows in r.
func (r QueryResult) Count() int {
	return len(r.Observations) + len(r.Incomplete)
}

// ScoreSummary is a per-year cross-country summary of indicator scores.
type ScoreSummary struct {
	IndicatorCode string  `json:"IndicatorCode"`
	Year          int     `json:"Year"`
	Count         int     `json:"Count"`
	Mean          float64 `json:"Mean"`
	StdDev        float64 `json:"StdDev"`
	Min           float64 `json:"Min"`
	Median        float64 `json:"Median"`
	Max           float64 `json:"Max"`
}

// Match reports whether o satisfies every set filter. Classifier filters
// are alternatives: o matches when its classifier is listed under any
// of them. CountryGroup is not consulted.
func (f QueryFilters) Match(o Observation) bool {
	if !f.matchCountryYear(o.CountryCode, o.Year) {
		return false
	}
	if !f.HasClassifier() {
		return true
	}
	return o.DatasetCode != "" && contains(f.DatasetCodes, o.DatasetCode) ||
		o.IntermediateCode != "" && contains(f.IntermediateCodes, o.IntermediateCode) ||
		o.IndicatorCode != "" && contains(f.IndicatorCodes, o.IndicatorCode)
}

// MatchIncomplete reports whether o satisfies every set filter. An
// intermediate filter matches rows holding or missing that intermediate.
func (f QueryFilters) MatchIncomplete(o IncompleteObservation) bool {
	if !f.matchCountryYear(o.CountryCode, o.Year) {
		return false
	}
	if !f.HasClassifier() {
		return true
	}
	if contains(f.IndicatorCodes, o.IndicatorCode) {
		return true
	}
	for _, code := range f.IntermediateCodes {
		if _, ok := o.Intermediates[code]; ok || contains(o.Missing, code) {
			return true
		}
	}
	return false
}

func (f QueryFilters) matchCountryYear(country string, year int) bool {
	if len(f.CountryCodes) > 0 && !contains(f.CountryCodes, country) {
		return false
	}
	if len(f.Years) > 0 && !containsInt(f.Years, year) {
		return false
	}
	if f.YearRangeStart != 0 && year < f.YearRangeStart {
		return false
	}
	if f.YearRangeEnd != 0 && year > f.YearRangeEnd {
		return false
	}
	return true
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
