package domain

import "encoding/json"

// SourceBinding addresses one upstream query. Params carry
// provider-specific selectors such as an SDMX key or an SDG series.
type SourceBinding struct {
	OrganizationCode string            `json:"OrganizationCode"`
	QueryCode        string            `json:"QueryCode"`
	Params           map[string]string `json:"Params,omitempty"`
}

// IsZero reports whether the binding is missing.
func (b SourceBinding) IsZero() bool {
	return b.OrganizationCode == "" || b.QueryCode == ""
}

// Param returns Params[key] or def.
func (b SourceBinding) Param(key, def string) string {
	if v, ok := b.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// CollectContext carries caller information stamped into provenance.
type CollectContext struct {
	Username         string
	IntermediateCode string
	Metadata         json.RawMessage
}

// CollectRequest is what the dispatcher hands a collector.
type CollectRequest struct {
	DatasetCode string
	Binding     SourceBinding
	Context     CollectContext
}

// CollectEvent is one step of a collection: a progress message and the
// payloads fetched in that step, in upstream order.
type CollectEvent struct {
	Message  string
	Payloads []RawPayload

	// Done, when set, holds the producer until the consumer calls Handled.
	Done chan struct{}
}

// Handled tells the producer the event has been stored and forwarded.
// It must be called at most once per event.
func (e CollectEvent) Handled() {
	if e.Done != nil {
		close(e.Done)
	}
}

// DropReason names why a cleaner discarded a record.
type DropReason string

const (
	DropInvalidCountry DropReason = "invalid_country"
	DropMissingValue   DropReason = "missing_value"
	DropNonNumeric     DropReason = "non_numeric"
	DropInvalidYear    DropReason = "invalid_year"
	DropDuplicate      DropReason = "duplicate"
	DropMalformed      DropReason = "malformed"
	DropFiltered       DropReason = "filtered"
)

// CleanResult is the output of a cleaner.
type CleanResult struct {
	Observations []Observation
	Dropped      map[DropReason]int
}

// DroppedTotal sums all drop counters.
func (r CleanResult) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}
