package scoring

import (
	"fmt"
	"sort"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// ZipSpec describes how one composite indicator is computed.
type ZipSpec struct {
	IndicatorCode string
	Intermediates []string
	Mode          domain.ScoreMode

	// Score is required. Value is optional; in Value mode Score is used
	// as the value function when Value is nil.
	Score *Expression
	Value *Expression

	Unit      string
	Goalposts domain.Goalposts
	Inverted  bool
}

// ZipResult partitions the (country, year) groups of a zip.
type ZipResult struct {
	Complete   []domain.Observation
	Incomplete []domain.IncompleteObservation

	// Duplicates lists keys seen more than once; the last one won.
	Duplicates []domain.ObservationKey

	// Ignored counts inputs whose intermediate code was not declared.
	Ignored int
}

type group struct {
	country string
	year    int
}

// Zip groups intermediate observations by (CountryCode, Year) and scores
// every group holding a finite value for each declared intermediate. All
// other groups become incomplete observations. Both outputs are sorted by
// (CountryCode, Year).
func Zip(obs []domain.Observation, spec ZipSpec) (*ZipResult, error) {
	if spec.Score == nil {
		return nil, fmt.Errorf("%w: %s has no score function", ErrExpression, spec.IndicatorCode)
	}
	if spec.Mode == domain.ScoreByValue {
		if err := spec.Goalposts.Validate(); err != nil {
			return nil, fmt.Errorf("indicator %s: %w", spec.IndicatorCode, err)
		}
	}

	declared := make(map[string]bool, len(spec.Intermediates))
	for _, code := range spec.Intermediates {
		declared[code] = true
	}

	res := &ZipResult{}
	groups := map[group]map[string]domain.Observation{}
	for _, o := range obs {
		if !declared[o.IntermediateCode] {
			res.Ignored++
			continue
		}
		g := group{country: o.CountryCode, year: o.Year}
		members, ok := groups[g]
		if !ok {
			members = map[string]domain.Observation{}
			groups[g] = members
		}
		if _, dup := members[o.IntermediateCode]; dup {
			res.Duplicates = append(res.Duplicates, domain.ObservationKey{
				CountryCode: o.CountryCode,
				Year:        o.Year,
				Classifier:  domain.IntermediateClassifier(o.IntermediateCode),
			})
		}
		members[o.IntermediateCode] = o
	}

	keys := make([]group, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].country != keys[j].country {
			return keys[i].country < keys[j].country
		}
		return keys[i].year < keys[j].year
	})

	for _, g := range keys {
		members := groups[g]
		values := make(map[string]float64, len(members))
		scores := make(map[string]float64, len(members))
		var missing []string
		for _, code := range spec.Intermediates {
			o, ok := members[code]
			if !ok || !Finite(o.Value) {
				missing = append(missing, code)
				continue
			}
			values[code] = o.Value
			scores[code] = o.Value
			if o.Score != nil {
				scores[code] = *o.Score
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			res.Incomplete = append(res.Incomplete, incomplete(spec, g, values, missing, domain.ReasonMissingIntermediate))
			continue
		}

		value, score, err := evaluate(spec, values, scores)
		if err != nil {
			return nil, fmt.Errorf("indicator %s %s/%d: %w", spec.IndicatorCode, g.country, g.year, err)
		}
		if !Finite(value) || !Finite(score) {
			res.Incomplete = append(res.Incomplete, incomplete(spec, g, values, nil, domain.ReasonNonFinite))
			continue
		}
		res.Complete = append(res.Complete, domain.Observation{
			CountryCode:   g.country,
			Year:          g.year,
			IndicatorCode: spec.IndicatorCode,
			Value:         value,
			Unit:          spec.Unit,
			Score:         domain.Float(score),
		})
	}
	return res, nil
}

// evaluate returns (value, score) for a complete group. Non-finite
// results are returned as is for the caller to partition.
func evaluate(spec ZipSpec, values, scores map[string]float64) (float64, float64, error) {
	if spec.Mode == domain.ScoreByValue {
		fn := spec.Value
		if fn == nil {
			fn = spec.Score
		}
		v, err := fn.Eval(values)
		if err != nil || !Finite(v) {
			return v, 0, err
		}
		s, err := Goalpost(v, spec.Goalposts, spec.Inverted)
		return v, s, err
	}

	raw, err := spec.Score.Eval(scores)
	if err != nil || !Finite(raw) {
		return raw, raw, err
	}
	score := Clip(raw)
	if spec.Value == nil {
		return score, score, nil
	}
	v, err := spec.Value.Eval(values)
	return v, score, err
}

func incomplete(spec ZipSpec, g group, present map[string]float64, missing []string, reason domain.IncompleteReason) domain.IncompleteObservation {
	return domain.IncompleteObservation{
		IndicatorCode: spec.IndicatorCode,
		CountryCode:   g.country,
		Year:          g.year,
		Intermediates: present,
		Missing:       missing,
		Reason:        reason,
	}
}
