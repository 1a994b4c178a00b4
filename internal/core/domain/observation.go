package domain

import (
	"fmt"
	"math"
	"sort"
)

// ClassifierKind names which code field classifies an observation.
type ClassifierKind string

const (
	// KindDataset classifies cleaned upstream data.
	KindDataset ClassifierKind = "DatasetCode"

	// KindIntermediate classifies inputs to a composite indicator.
	KindIntermediate ClassifierKind = "IntermediateCode"

	// KindIndicator classifies scored indicator values.
	KindIndicator ClassifierKind = "IndicatorCode"
)

// Valid reports whether k is one of the known kinds.
func (k ClassifierKind) Valid() bool {
	switch k {
	case KindDataset, KindIntermediate, KindIndicator:
		return true
	}
	return false
}

// Classifier identifies the partition an observation belongs to.
type Classifier struct {
	Kind ClassifierKind
	Code string
}

// DatasetClassifier returns the classifier of dataset code.
func DatasetClassifier(code string) Classifier {
	return Classifier{Kind: KindDataset, Code: code}
}

// IntermediateClassifier returns the classifier of intermediate code.
func IntermediateClassifier(code string) Classifier {
	return Classifier{Kind: KindIntermediate, Code: code}
}

// IndicatorClassifier returns the classifier of indicator code.
func IndicatorClassifier(code string) Classifier {
	return Classifier{Kind: KindIndicator, Code: code}
}

func (c Classifier) String() string {
	return string(c.Kind) + ":" + c.Code
}

// SourceRef names the upstream query an observation was cleaned from.
type SourceRef struct {
	OrganizationCode string `json:"OrganizationCode"`
	QueryCode        string `json:"QueryCode"`
}

// Observation is the canonical per-country-per-year record.
// Exactly one of DatasetCode, IntermediateCode and IndicatorCode is set.
type Observation struct {
	CountryCode      string     `json:"CountryCode"`
	Year             int        `json:"Year"`
	DatasetCode      string     `json:"DatasetCode,omitempty"`
	IntermediateCode string     `json:"IntermediateCode,omitempty"`
	IndicatorCode    string     `json:"IndicatorCode,omitempty"`
	Value            float64    `json:"Value"`
	Unit             string     `json:"Unit,omitempty"`
	Score            *float64   `json:"Score,omitempty"`
	Description      string     `json:"Description,omitempty"`
	Source           *SourceRef `json:"Source,omitempty"`
}

// Classifier returns the single classifier set on o.
func (o Observation) Classifier() (Classifier, error) {
	var found []Classifier
	if o.DatasetCode != "" {
		found = append(found, DatasetClassifier(o.DatasetCode))
	}
	if o.IntermediateCode != "" {
		found = append(found, IntermediateClassifier(o.IntermediateCode))
	}
	if o.IndicatorCode != "" {
		found = append(found, IndicatorClassifier(o.IndicatorCode))
	}
	if len(found) != 1 {
		return Classifier{}, fmt.Errorf("%w: %s/%d has %d", ErrClassifier, o.CountryCode, o.Year, len(found))
	}
	return found[0], nil
}

// WithClassifier returns a copy of o carrying only c.
func (o Observation) WithClassifier(c Classifier) Observation {
	o.DatasetCode, o.IntermediateCode, o.IndicatorCode = "", "", ""
	switch c.Kind {
	case KindDataset:
		o.DatasetCode = c.Code
	case KindIntermediate:
		o.IntermediateCode = c.Code
	case KindIndicator:
		o.IndicatorCode = c.Code
	}
	return o
}

// ObservationKey is the uniqueness key of the clean collection.
type ObservationKey struct {
	CountryCode string
	Year        int
	Classifier  Classifier
}

func (k ObservationKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.CountryCode, k.Year, k.Classifier)
}

// Key returns the uniqueness key of o.
func (o Observation) Key() (ObservationKey, error) {
	c, err := o.Classifier()
	if err != nil {
		return ObservationKey{}, err
	}
	return ObservationKey{CountryCode: o.CountryCode, Year: o.Year, Classifier: c}, nil
}

// Validate checks the structural invariants of an observation: one
// classifier, an alpha-3 shaped country code, a plausible year, a finite
// value and a score within [0, 1].
func (o Observation) Validate() error {
	if _, err := o.Classifier(); err != nil {
		return err
	}
	if !IsAlpha3Shape(o.CountryCode) {
		return fmt.Errorf("%w: country code %q", ErrInvalidInput, o.CountryCode)
	}
	if !ValidYear(o.Year) {
		return fmt.Errorf("%w: year %d", ErrInvalidInput, o.Year)
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidInput)
	}
	if o.Score != nil && (math.IsNaN(*o.Score) || *o.Score < 0 || *o.Score > 1) {
		return fmt.Errorf("%w: %v", ErrScoreRange, *o.Score)
	}
	return nil
}

// IsAlpha3Shape reports whether code is three uppercase ASCII letters.
func IsAlpha3Shape(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// ValidYear bounds the years accepted into clean.
func ValidYear(y int) bool {
	return y >= 1900 && y <= 2100
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// SortObservations orders by (CountryCode, Year) and then classifier.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		a, b := obs[i], obs[j]
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		ca, _ := a.Classifier()
		cb, _ := b.Classifier()
		return ca.String() < cb.String()
	})
}

// YearRange is the observed span of a dataset.
type YearRange struct {
	MinYear int `json:"MinYear"`
	MaxYear int `json:"MaxYear"`
}

// RangeOf returns the year span of obs and false when obs is empty.
func RangeOf(obs []Observation) (YearRange, bool) {
	if len(obs) == 0 {
		return YearRange{}, false
	}
	r := YearRange{MinYear: obs[0].Year, MaxYear: obs[0].Year}
	for _, o := range obs[1:] {
		if o.Year < r.MinYear {
			r.MinYear = o.Year
		}
		if o.Year > r.MaxYear {
			r.MaxYear = o.Year
		}
	}
	return r, true
}

// IncompleteReason explains why a composite was not computed.
type IncompleteReason string

const (
	// ReasonMissingIntermediate marks groups lacking a declared intermediate.
	ReasonMissingIntermediate IncompleteReason = "missing_intermediate"

	// ReasonNonFinite marks groups whose functions produced NaN or Inf.
	ReasonNonFinite IncompleteReason = "non_finite_result"
)

// IncompleteObservation records a (country, year) composite that could
// not be scored, with the intermediates that were present.
type IncompleteObservation struct {
	IndicatorCode string             `json:"IndicatorCode"`
	CountryCode   string             `json:"CountryCode"`
	Year          int                `json:"Year"`
	Intermediates map[string]float64 `json:"Intermediates"`
	Missing       []string           `json:"Missing,omitempty"`
	Reason        IncompleteReason   `json:"Reason"`
}

// SortIncomplete orders by (CountryCode, Year).
func SortIncomplete(obs []IncompleteObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].CountryCode != obs[j].CountryCode {
			return obs[i].CountryCode < obs[j].CountryCode
		}
		return obs[i].Year < obs[j].Year
	})
}
