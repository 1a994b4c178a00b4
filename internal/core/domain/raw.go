package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Provenance is the envelope stamped onto every raw document.
type Provenance struct {
	OrganizationCode string          `json:"OrganizationCode"`
	QueryCode        string          `json:"QueryCode"`
	CollectedAt      time.Time       `json:"CollectedAt"`
	CollectedBy      string          `json:"CollectedBy,omitempty"`
	IntermediateCode string          `json:"IntermediateCode,omitempty"`
	Metadata         json.RawMessage `json:"Metadata,omitempty"`
}

// RawDocument is an upstream payload as received, plus provenance.
// CountryCode and Year are optional hints used for deduplication.
type RawDocument struct {
	ID          string          `json:"ID"`
	Source      Provenance      `json:"Source"`
	CountryCode string          `json:"CountryCode,omitempty"`
	Year        int             `json:"Year,omitempty"`
	PayloadHash string          `json:"PayloadHash"`
	Raw         json.RawMessage `json:"Raw"`
}

// HashPayload returns the hex SHA-256 of payload.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// DedupKey identifies a raw document for idempotent insertion.
type DedupKey struct {
	OrganizationCode string
	QueryCode        string
	CountryCode      string
	Year             int
	PayloadHash      string
}

// DedupKey returns the deduplication key of d.
func (d RawDocument) DedupKey() DedupKey {
	hash := d.PayloadHash
	if hash == "" {
		hash = HashPayload(d.Raw)
	}
	return DedupKey{
		OrganizationCode: d.Source.OrganizationCode,
		QueryCode:        d.Source.QueryCode,
		CountryCode:      d.CountryCode,
		Year:             d.Year,
		PayloadHash:      hash,
	}
}

// RawPayload is what a collector emits before provenance is stamped.
type RawPayload struct {
	CountryCode string
	Year        int
	Raw         json.RawMessage
}
