// Package uis collects education indicators from the UNESCO Institute
// for Statistics data API. An indicator arrives in a single response.
package uis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	OrganizationCode = "UIS"
	DefaultBaseURL   = "https://api.uis.unesco.org"
)

// Datasets served by this collector.
var Datasets = []collectors.Dataset{
	{Code: "UIS_ENRPRI", QueryCode: "NER.1.CP", Name: "Net enrolment rate, primary", Unit: "Percent"},
	{Code: "UIS_ENRSEC", QueryCode: "NER.2.CP", Name: "Net enrolment rate, lower secondary", Unit: "Percent"},
	{Code: "UIS_PUPTCH", QueryCode: "PTRHC.1", Name: "Pupil-teacher ratio, primary", Unit: "Pupils per teacher"},
	{Code: "UIS_EDUEXP", QueryCode: "XGDP.FSGOV", Name: "Government expenditure on education", Unit: "Percent of GDP"},
}

// Collector fetches UIS indicators.
type Collector struct {
	client *httpclient.Client
}

// New creates a collector over client.
func New(client *httpclient.Client) *Collector {
	return &Collector{client: client}
}

func (c *Collector) OrganizationCode() string { return OrganizationCode }

// Record is one element of the records array.
type Record struct {
	IndicatorID string `json:"indicatorId"`
	GeoUnit     string `json:"geoUnit"`
	Year        any    `json:"year"`
	Value       any    `json:"value"`
	Magnitude   string `json:"magnitude,omitempty"`
	Qualifier   string `json:"qualifier,omitempty"`
}

type response struct {
	Records []json.RawMessage `json:"records"`
}

// Collect fetches the bound indicator for every geography.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		indicator := req.Binding.QueryCode
		query := url.Values{"indicator": {indicator}, "geoUnitType": {req.Binding.Param("geoUnitType", "NATIONAL")}}

		var resp response
		if err := c.client.GetJSON(ctx, "/api/public/data/indicators", query, &resp); err != nil {
			return fmt.Errorf("%s: %w", indicator, err)
		}

		payloads := make([]domain.RawPayload, 0, len(resp.Records))
		for _, raw := range resp.Records {
			var r Record
			_ = json.Unmarshal(raw, &r)
			year, _ := r.Year.(float64)
			p, err := collectors.Payload(raw, r.GeoUnit, int(year))
			if err != nil {
				return err
			}
			payloads = append(payloads, p)
		}
		return emit(domain.CollectEvent{
			Message:  fmt.Sprintf("%s: %d records", indicator, len(payloads)),
			Payloads: payloads,
		})
	})
}
