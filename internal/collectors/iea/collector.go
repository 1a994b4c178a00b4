// Package iea collects energy statistics from the International Energy
// Agency API. An indicator arrives in a single response whose records
// name countries either by code or by English name.
package iea

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	OrganizationCode = "IEA"
	DefaultBaseURL   = "https://api.iea.org"
)

// Datasets served by this collector.
var Datasets = []collectors.Dataset{
	{Code: "IEA_TESPRO", QueryCode: "TESbySource", Name: "Total energy supply by source", Unit: "TJ"},
	{Code: "IEA_ALTNUC", QueryCode: "AlternativeNuclear", Name: "Alternative and nuclear energy share", Unit: "Percent"},
	{Code: "IEA_CO2FUE", QueryCode: "CO2BySector", Name: "CO2 emissions from fuel combustion", Unit: "Mt CO2"},
}

// Collector fetches IEA indicators.
type Collector struct {
	client   *httpclient.Client
	resolver *countries.Resolver
}

// New creates a collector. A nil resolver uses the default.
func New(client *httpclient.Client, resolver *countries.Resolver) *Collector {
	if resolver == nil {
		resolver = countries.Default()
	}
	return &Collector{client: client, resolver: resolver}
}

func (c *Collector) OrganizationCode() string { return OrganizationCode }

// Record is one element of an IEA response.
type Record struct {
	Year    any    `json:"year"`
	Country string `json:"country"`
	Short   string `json:"short,omitempty"`
	Product string `json:"product,omitempty"`
	Flow    string `json:"flow,omitempty"`
	Units   string `json:"units,omitempty"`
	Value   any    `json:"value"`
}

// CountryCode resolves the record's country through resolver.
func (r Record) CountryCode(resolver *countries.Resolver) string {
	if code, ok := resolver.FromAlpha3(r.Short); ok {
		return code
	}
	code, _ := resolver.Resolve(r.Country)
	return code
}

// Collect fetches the bound indicator.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		code := req.Binding.QueryCode
		query := url.Values{}
		if p := req.Binding.Param("product", ""); p != "" {
			query.Set("product", p)
		}

		var records []json.RawMessage
		if err := c.client.GetJSON(ctx, "/stats/indicator/"+url.PathEscape(code), query, &records); err != nil {
			return fmt.Errorf("%s: %w", code, err)
		}

		payloads := make([]domain.RawPayload, 0, len(records))
		unresolved := 0
		for _, raw := range records {
			var r Record
			_ = json.Unmarshal(raw, &r)
			country := r.CountryCode(c.resolver)
			if country == "" {
				unresolved++
			}
			year, _ := r.Year.(float64)
			p, err := collectors.Payload(raw, country, int(year))
			if err != nil {
				return err
			}
			payloads = append(payloads, p)
		}

		msg := fmt.Sprintf("%s: %d records", code, len(payloads))
		if unresolved > 0 {
			msg += fmt.Sprintf(", %d with unresolved countries", unresolved)
		}
		return emit(domain.CollectEvent{Message: msg, Payloads: payloads})
	})
}
