// Package scoring implements the arithmetic of SSPI scores: goalposting,
// composite score functions and zipping intermediates by country and year.
// Everything here is pure; persistence lives in the services layer.
package scoring

import (
	"math"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// Goalpost maps v onto [0, 1] between the goalposts. Inverted indicators
// score 1 at the lower goalpost. Out-of-range values are clipped.
func Goalpost(v float64, g domain.Goalposts, inverted bool) (float64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	span := g.Upper - g.Lower
	if inverted {
		return Clip((g.Upper - v) / span), nil
	}
	return Clip((v - g.Lower) / span), nil
}

// Clip bounds s to [0, 1].
func Clip(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
