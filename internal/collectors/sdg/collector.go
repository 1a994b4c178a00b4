// Package sdg collects Sustainable Development Goal indicators from the
// UN Statistics Division API. The API is queried once per country: the
// indicator's geographic areas are listed first, then data is paged per
// M49 area code.
package sdg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sspi-index/sspi-engine/internal/cleaners"
	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	OrganizationCode = "UNSDG"
	DefaultBaseURL   = "https://unstats.un.org/SDGAPI"

	pageSize = "10000"
)

// Datasets served by this collector. The "series" parameter narrows an
// indicator to one of its series when cleaning.
var Datasets = []collectors.Dataset{
	{Code: "UNSDG_MARINE", QueryCode: "14.5.1", Name: "Coverage of marine protected areas", Unit: "Percent",
		Params: map[string]string{"series": "ER_MRN_MPA"}},
	{Code: "UNSDG_STKHLM", QueryCode: "12.4.1", Name: "Stockholm Convention compliance", Unit: "Percent",
		Params: map[string]string{"series": "SG_HAZ_CMRSTHOLM"}},
	{Code: "UNSDG_REDLST", QueryCode: "15.5.1", Name: "Red List Index", Unit: "Index",
		Params: map[string]string{"series": "ER_RSK_LST"}},
	{Code: "UNSDG_BIODIV", QueryCode: "15.1.2", Name: "Protected key biodiversity areas", Unit: "Percent",
		Params: map[string]string{"series": "ER_PTD_TERR"}},
}

// Collector fetches SDG indicator data country by country.
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

// GeoArea is one entry of the area list.
type GeoArea struct {
	GeoAreaCode string `json:"geoAreaCode"`
	GeoAreaName string `json:"geoAreaName"`
}

// Record is one element of a data response.
type Record struct {
	Goal              []string          `json:"goal,omitempty"`
	Indicator         []string          `json:"indicator,omitempty"`
	Series            string            `json:"series"`
	SeriesDescription string            `json:"seriesDescription"`
	GeoAreaCode       string            `json:"geoAreaCode"`
	GeoAreaName       string            `json:"geoAreaName"`
	TimePeriodStart   any               `json:"timePeriodStart"`
	Value             any               `json:"value"`
	ValueType         string            `json:"valueType,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	Dimensions        map[string]string `json:"dimensions,omitempty"`
}

type dataResponse struct {
	TotalPages int               `json:"totalPages"`
	Data       []json.RawMessage `json:"data"`
}

// area is what one M49 area yields. Undecodable records are kept for the
// cleaner to reject but carry no country or year hint.
type area struct {
	payloads    []domain.RawPayload
	undecodable int
}

// Collect lists the indicator's country areas and fetches each of them.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		indicator := req.Binding.QueryCode
		var areas []GeoArea
		path := "/v1/sdg/Indicator/" + url.PathEscape(indicator) + "/GeoAreas"
		if err := c.client.GetJSON(ctx, path, nil, &areas); err != nil {
			return fmt.Errorf("list geographic areas of %s: %w", indicator, err)
		}

		type target struct {
			m49, alpha3, name string
		}
		var targets []target
		for _, a := range areas {
			if code, ok := c.resolver.FromM49(a.GeoAreaCode); ok {
				targets = append(targets, target{countries.PadM49(a.GeoAreaCode), code, a.GeoAreaName})
			}
		}
		if err := emit(domain.CollectEvent{Message: fmt.Sprintf("%d country areas", len(targets))}); err != nil {
			return err
		}

		for i, t := range targets {
			got, err := c.fetchArea(ctx, req.Binding, t.m49, t.alpha3)
			if err != nil {
				return fmt.Errorf("%s area %s: %w", indicator, t.m49, err)
			}
			msg := fmt.Sprintf("%s: %s (%s) %d/%d", indicator, t.name, t.m49, i+1, len(targets))
			if got.undecodable > 0 {
				msg += fmt.Sprintf(", %d undecodable records", got.undecodable)
			}
			if err := emit(domain.CollectEvent{Message: msg, Payloads: got.payloads}); err != nil {
				return err
			}
		}
		return nil
	})
}

// fetchArea reads every page of one area's data.
func (c *Collector) fetchArea(ctx context.Context, b domain.SourceBinding, m49, alpha3 string) (area, error) {
	query := url.Values{
		"indicator": {b.QueryCode},
		"areaCode":  {m49},
		"pageSize":  {pageSize},
	}
	if tp := b.Param("timePeriod", ""); tp != "" {
		query.Set("timePeriod", tp)
	}

	var out area
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		var resp dataResponse
		if err := c.client.GetJSON(ctx, "/v1/sdg/Indicator/Data", query, &resp); err != nil {
			return out, fmt.Errorf("page %d: %w", page, err)
		}
		for _, raw := range resp.Data {
			var r Record
			hint := alpha3
			year := 0
			if err := json.Unmarshal(raw, &r); err != nil {
				out.undecodable++
				hint = ""
			} else {
				year, _ = cleaners.ParseYear(r.TimePeriodStart)
			}
			p, err := collectors.Payload(raw, hint, year)
			if err != nil {
				return out, err
			}
			out.payloads = append(out.payloads, p)
		}
		if page >= resp.TotalPages {
			return out, nil
		}
	}
}
