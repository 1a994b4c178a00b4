package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPayload(t *testing.T) {
	a := HashPayload([]byte(`{"value":"42.5"}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashPayload([]byte(`{"value":"42.5"}`)))
	assert.NotEqual(t, a, HashPayload([]byte(`{"value":"42.6"}`)))
}

func TestRawDocument_DedupKeyHashesWhenUnset(t *testing.T) {
	raw := json.RawMessage(`{"countryiso3code":"USA"}`)
	d := RawDocument{Source: Provenance{OrganizationCode: "WorldBank", QueryCode: "SP.POP.TOTL"}, Raw: raw}

	key := d.DedupKey()

	assert.Equal(t, HashPayload(raw), key.PayloadHash)
	d.PayloadHash = "precomputed"
	assert.Equal(t, "precomputed", d.DedupKey().PayloadHash)
}
