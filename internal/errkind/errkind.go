// Package errkind classifies engine errors into the kinds reported to callers.
package errkind

import (
	"github.com/zeebo/errs"
)

// Error classes. Wrapping a sentinel keeps errors.Is working on the result.
var (
	// Configuration covers unknown codes, missing bindings and bad goalposts.
	Configuration = errs.Class("configuration")

	// Upstream covers network failures and unexpected upstream payloads.
	Upstream = errs.Class("upstream")

	// Data covers records that cannot be cleaned.
	Data = errs.Class("data")

	// Integrity covers violated store invariants.
	Integrity = errs.Class("integrity")

	// Authorization covers unauthenticated mutating requests.
	Authorization = errs.Class("authorization")

	// Query covers rejected filters and unknown collections.
	Query = errs.Class("query")
)

// Internal is the kind reported for unclassified errors.
const Internal = "internal"

var classes = []struct {
	name  string
	class *errs.Class
}{
	{"configuration", &Configuration},
	{"upstream", &Upstream},
	{"data", &Data},
	{"integrity", &Integrity},
	{"authorization", &Authorization},
	{"query", &Query},
}

// KindOf returns the kind name of err, or Internal.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if c.class.Has(err) {
			return c.name
		}
	}
	return Internal
}
