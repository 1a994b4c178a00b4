// Package worldbank collects indicator series from the World Bank API.
// The API is paginated: element 0 of each response carries the page
// count, element 1 the records of that page.
package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	// OrganizationCode identifies the World Bank in source bindings.
	OrganizationCode = "WorldBank"

	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.worldbank.org"

	// DefaultPerPage is the page size requested.
	DefaultPerPage = 1000
)

// Datasets served by this collector.
var Datasets = []collectors.Dataset{
	{Code: "WB_DRKWAT", QueryCode: "SH.H2O.BASW.ZS", Name: "Basic drinking water services", Unit: "Percent"},
	{Code: "WB_SANSRV", QueryCode: "SH.STA.BASS.ZS", Name: "Basic sanitation services", Unit: "Percent"},
	{Code: "WB_FORAR", QueryCode: "AG.LND.FRST.ZS", Name: "Forest area", Unit: "Percent of land area"},
	{Code: "WB_CREDIT", QueryCode: "FS.AST.PRVT.GD.ZS", Name: "Domestic credit to private sector", Unit: "Percent of GDP"},
	{Code: "WB_DPOSIT", QueryCode: "GFDD.OI.02", Name: "Bank deposits to GDP", Unit: "Percent of GDP"},
	{Code: "WB_POPULN", QueryCode: "SP.POP.TOTL", Name: "Population, total", Unit: "Persons"},
	{Code: "WB_GINIPT", QueryCode: "SI.POV.GINI", Name: "Gini index", Unit: "Index"},
	{Code: "WB_UNEMPL", QueryCode: "SL.UEM.TOTL.ZS", Name: "Unemployment, total", Unit: "Percent of labour force"},
}

// Collector fetches World Bank indicators.
type Collector struct {
	client  *httpclient.Client
	perPage int
}

// New creates a collector over client.
func New(client *httpclient.Client) *Collector {
	return &Collector{client: client, perPage: DefaultPerPage}
}

// OrganizationCode returns "WorldBank".
func (c *Collector) OrganizationCode() string {
	return OrganizationCode
}

// Record is one element of a results page.
type Record struct {
	Indicator       Ref    `json:"indicator"`
	Country         Ref    `json:"country"`
	CountryISO3Code string `json:"countryiso3code"`
	Date            string `json:"date"`
	Value           any    `json:"value"`
	Unit            string `json:"unit"`
	ObsStatus       string `json:"obs_status"`
	Decimal         int    `json:"decimal"`
}

// Ref is an {id, value} pair.
type Ref struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type pageInfo struct {
	Page    json.Number `json:"page"`
	Pages   int         `json:"pages"`
	PerPage json.Number `json:"per_page"`
	Total   int         `json:"total"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

// Collect walks every page of the bound indicator.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		indicator := req.Binding.QueryCode
		for page, pages := 1, 1; page <= pages; page++ {
			info, records, err := c.fetchPage(ctx, indicator, page)
			if err != nil {
				return fmt.Errorf("%s page %d: %w", indicator, page, err)
			}
			pages = info.Pages

			payloads := make([]domain.RawPayload, 0, len(records))
			for _, raw := range records {
				var r Record
				if err := json.Unmarshal(raw, &r); err != nil {
					return errkind.Upstream.Wrap(fmt.Errorf("%s page %d: decode record: %w", indicator, page, err))
				}
				year, _ := strconv.Atoi(r.Date)
				p, err := collectors.Payload(raw, r.CountryISO3Code, year)
				if err != nil {
					return err
				}
				payloads = append(payloads, p)
			}

			msg := fmt.Sprintf("%s: page %d of %d", indicator, page, pages)
			if records == nil {
				logger.Warn("worldbank %s: page %d of %d has no records", indicator, page, pages)
				msg += " (no records)"
			}
			if err := emit(domain.CollectEvent{Message: msg, Payloads: payloads}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Collector) fetchPage(ctx context.Context, indicator string, page int) (pageInfo, []json.RawMessage, error) {
	path := "/v2/country/all/indicator/" + url.PathEscape(indicator)
	query := url.Values{
		"format":   {"json"},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(c.perPage)},
	}

	var body []json.RawMessage
	if err := c.client.GetJSON(ctx, path, query, &body); err != nil {
		return pageInfo{}, nil, err
	}
	if len(body) == 0 {
		return pageInfo{}, nil, errkind.Upstream.New("empty response")
	}

	var info pageInfo
	if err := json.Unmarshal(body[0], &info); err != nil {
		return pageInfo{}, nil, errkind.Upstream.Wrap(fmt.Errorf("decode page info: %w", err))
	}
	if len(info.Message) > 0 {
		m := info.Message[0]
		return info, nil, errkind.Upstream.New("%s: %s", m.Key, m.Value)
	}
	if len(body) < 2 || string(body[1]) == "null" {
		if page == 1 && info.Total == 0 {
			return info, nil, errkind.Upstream.New("empty page set")
		}
		return info, nil, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body[1], &records); err != nil {
		return info, nil, errkind.Upstream.Wrap(fmt.Errorf("decode records: %w", err))
	}
	return info, records, nil
}
