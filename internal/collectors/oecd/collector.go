// Package oecd collects bulk SDMX-JSON data from the OECD data explorer.
// One request returns a whole dataflow slice; observations are flattened
// into one raw record per (dimension values, value) tuple.
package oecd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	OrganizationCode = "OECD"
	DefaultBaseURL   = "https://sdmx.oecd.org/public/rest"

	// DefaultCountryGroup expands the {countries} key placeholder.
	DefaultCountryGroup = "SSPI67"

	countriesPlaceholder = "{countries}"

	DimensionArea = "REF_AREA"
	DimensionTime = "TIME_PERIOD"
)

// Datasets served by this collector. The "key" parameter is an SDMX key
// whose {countries} placeholder is replaced by the "group" country group.
var Datasets = []collectors.Dataset{
	{Code: "OECD_GHGEMS", QueryCode: "OECD.ENV.EPI,DSD_AIR_GHG@DF_AIR_GHG,1.0", Name: "Greenhouse gas emissions",
		Unit: "Tonnes CO2 equivalent per capita", Params: map[string]string{"key": "{countries}.A.GHG._T.T_CO2E_PS"}},
	{Code: "OECD_TAXREV", QueryCode: "OECD.CTP.TPS,DSD_REV_COMP_GLOBAL@DF_RSGLOBAL,1.0", Name: "Tax revenue",
		Unit: "Percent of GDP", Params: map[string]string{"key": "{countries}.S13.T_1000.._Z.PT_B1GQ.A"}},
	{Code: "OECD_RDEXPD", QueryCode: "OECD.STI.STP,DSD_MSTI@DF_MSTI,1.3", Name: "Gross domestic R&D expenditure",
		Unit: "Percent of GDP", Params: map[string]string{"key": "{countries}.A.G.PT_B1GQ."}},
}

// GroupLookup resolves country group names.
type GroupLookup interface {
	CountryGroup(name string) (domain.CountryGroup, error)
}

// Collector fetches OECD dataflows.
type Collector struct {
	client *httpclient.Client
	groups GroupLookup
}

// New creates a collector. groups may be nil when no binding uses the
// {countries} placeholder.
func New(client *httpclient.Client, groups GroupLookup) *Collector {
	return &Collector{client: client, groups: groups}
}

func (c *Collector) OrganizationCode() string { return OrganizationCode }

// Record is one flattened SDMX observation.
type Record struct {
	Dimensions map[string]string `json:"dimensions"`
	Value      any               `json:"value"`
}

// Collect fetches the bound dataflow slice in one request.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		flow := req.Binding.QueryCode
		key, err := c.expandKey(req.Binding)
		if err != nil {
			return err
		}

		path := "/data/" + url.PathEscape(flow) + "/" + key
		query := url.Values{"dimensionAtObservation": {"AllDimensions"}, "format": {"jsondata"}}
		if start := req.Binding.Param("startPeriod", ""); start != "" {
			query.Set("startPeriod", start)
		}

		var msg Message
		if err := c.client.GetJSON(ctx, path, query, &msg); err != nil {
			return fmt.Errorf("%s: %w", flow, err)
		}
		records, err := msg.Flatten()
		if err != nil {
			return errkind.Upstream.Wrap(fmt.Errorf("%s: %w", flow, err))
		}

		payloads := make([]domain.RawPayload, 0, len(records))
		for _, r := range records {
			year, _ := strconv.Atoi(r.Dimensions[DimensionTime])
			p, err := collectors.Payload(r, r.Dimensions[DimensionArea], year)
			if err != nil {
				return err
			}
			payloads = append(payloads, p)
		}
		return emit(domain.CollectEvent{
			Message:  fmt.Sprintf("%s: %d observations", flow, len(payloads)),
			Payloads: payloads,
		})
	})
}

func (c *Collector) expandKey(b domain.SourceBinding) (string, error) {
	key := b.Param("key", "all")
	if !strings.Contains(key, countriesPlaceholder) {
		return key, nil
	}
	if c.groups == nil {
		return "", errkind.Configuration.New("key %q needs a country group lookup", key)
	}
	group, err := c.groups.CountryGroup(b.Param("group", DefaultCountryGroup))
	if err != nil {
		return "", errkind.Configuration.Wrap(err)
	}
	return strings.ReplaceAll(key, countriesPlaceholder, strings.Join(group.Countries, "+")), nil
}
