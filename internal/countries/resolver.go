// Package countries resolves upstream country identifiers to ISO 3166-1
// alpha-3 codes. Upstreams identify countries by alpha-3 code, by M49
// numeric code or by free-form English name; names go through a static
// alias table first and a bounded edit-distance match last.
package countries

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/agnivade/levenshtein"
	iso "github.com/biter777/countries"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Resolver maps identifiers to alpha-3 codes. It is safe for concurrent use.
type Resolver struct {
	alpha3 map[string]struct{}
	names  map[string]string
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the shared resolver.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = NewResolver()
	})
	return defaultResolver
}

// NewResolver builds a resolver from the ISO table and the alias table.
func NewResolver() *Resolver {
	r := &Resolver{
		alpha3: make(map[string]struct{}),
		names:  make(map[string]string),
	}
	for _, c := range iso.All() {
		code := c.Alpha3()
		if len(code) != 3 {
			continue
		}
		r.alpha3[code] = struct{}{}
		if name := Normalise(c.String()); name != "" {
			r.names[name] = code
		}
	}
	for name, code := range aliases {
		r.names[name] = code
	}
	return r
}

// IsAlpha3 reports whether code is an assigned alpha-3 code.
func (r *Resolver) IsAlpha3(code string) bool {
	_, ok := r.alpha3[code]
	return ok
}

// FromAlpha3 upper-cases and validates code.
func (r *Resolver) FromAlpha3(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !r.IsAlpha3(code) {
		return "", false
	}
	return code, true
}

// FromM49 resolves a numeric M49 code such as "4" or "004".
func (r *Resolver) FromM49(code string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || n <= 0 || n > 999 {
		return "", false
	}
	c := iso.ByNumeric(n)
	if !c.IsValid() {
		return "", false
	}
	return r.FromAlpha3(c.Alpha3())
}

// PadM49 left-pads a numeric code to three digits.
func PadM49(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 3 {
		code = "0" + code
	}
	return code
}

// FromName resolves a free-form English country name.
func (r *Resolver) FromName(name string) (string, bool) {
	key := Normalise(name)
	if key == "" {
		return "", false
	}
	if code, ok := r.names[key]; ok {
		return code, true
	}
	return r.fuzzy(key)
}

// Resolve tries alpha-3, then M49, then name.
func (r *Resolver) Resolve(id string) (string, bool) {
	if code, ok := r.FromAlpha3(id); ok {
		return code, true
	}
	if code, ok := r.FromM49(id); ok {
		return code, true
	}
	return r.FromName(id)
}

// fuzzy accepts the closest known name when it is unambiguous and within
// a distance proportional to the name's length.
func (r *Resolver) fuzzy(key string) (string, bool) {
	limit := len(key) / 6
	if limit < 1 {
		limit = 1
	}
	if limit > 3 {
		limit = 3
	}

	best, bestCode, ambiguous := limit+1, "", false
	for name, code := range r.names {
		d := levenshtein.ComputeDistance(key, name)
		switch {
		case d < best:
			best, bestCode, ambiguous = d, code, false
		case d == best && code != bestCode:
			ambiguous = true
		}
	}
	if bestCode == "" || ambiguous {
		return "", false
	}
	return bestCode, true
}

var stopwords = map[string]bool{"the": true, "of": true, "and": true}

// Normalise folds a name to lower-case ASCII words without stopwords.
// "Côte d'Ivoire" becomes "cote d ivoire", "Myanmar (formerly Burma)"
// becomes "myanmar formerly burma".
func Normalise(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "&", " and "))

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
