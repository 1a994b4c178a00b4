package cleaners

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

var (
	// ErrMissing indicates an absent, null or empty value.
	ErrMissing = errors.New("missing value")

	// ErrNotNumeric indicates a value that cannot be read as a finite number.
	ErrNotNumeric = errors.New("not numeric")
)

// ParseFloat reads a value tolerantly. Strings may carry thousands
// separators, surrounding spaces, a trailing percent sign or scientific
// notation. "NaN", "..", "-" and similar placeholders count as missing.
func ParseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, ErrMissing
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return ParseFloat(string(x))
	case *float64:
		if x == nil {
			return 0, ErrMissing
		}
		return finite(*x)
	case string:
		return parseString(x)
	}
	return 0, ErrNotNumeric
}

var placeholders = map[string]bool{
	"": true, "nan": true, "null": true, "none": true, "n/a": true, "na": true,
	"..": true, "...": true, "-": true, "--": true, "…": true,
}

func parseString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if placeholders[strings.ToLower(s)] {
		return 0, ErrMissing
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return finite(f)
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) {
		return 0, ErrMissing
	}
	if math.IsInf(f, 0) {
		return 0, ErrNotNumeric
	}
	return f, nil
}

// ParseYear reads a year from a number or from a string such as "2019",
// " 2019 ", "Y2019" or "2019-01-01". Leading non-digit markers are
// stripped; the first four digits must form a plausible year.
func ParseYear(v any) (int, bool) {
	var s string
	switch x := v.(type) {
	case int:
		return x, domain.ValidYear(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), domain.ValidYear(int(x))
	case json.Number:
		s = string(x)
	case string:
		s = x
	default:
		return 0, false
	}

	s = strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool { return !unicode.IsDigit(r) })
	if len(s) < 4 {
		return 0, false
	}
	if len(s) > 4 && unicode.IsDigit(rune(s[4])) {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || !domain.ValidYear(y) {
		return 0, false
	}
	return y, true
}

// DropReasonOf maps a value parse error to a drop reason.
func DropReasonOf(err error) domain.DropReason {
	if errors.Is(err, ErrMissing) {
		return domain.DropMissingValue
	}
	return domain.DropNonNumeric
}
