// Package prisonstudies scrapes prison population trends from the World
// Prison Brief. The index page links to one page per country; country
// pages are kept in a page cache so repeated collections skip the network.
package prisonstudies

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// Ensure Collector implements the interface.
var _ driven.Collector = (*Collector)(nil)

const (
	OrganizationCode = "WPB"
	DefaultBaseURL   = "https://www.prisonstudies.org"

	// IndexPath lists every country page.
	IndexPath = "/world-prison-brief-data"

	// Trend table columns.
	ColumnTotal = "total"
	ColumnRate  = "rate"
)

// Datasets served by this collector. The "column" parameter selects the
// trend table column the cleaner reads.
var Datasets = []collectors.Dataset{
	{Code: "WPB_PRIPOP", QueryCode: "PrisonPopulation", Name: "Prison population total", Unit: "Prisoners",
		Params: map[string]string{"column": ColumnTotal}},
	{Code: "WPB_PRIRAT", QueryCode: "PrisonPopulationRate", Name: "Prison population rate", Unit: "Prisoners per 100,000",
		Params: map[string]string{"column": ColumnRate}},
}

// Record is one row of a country's trend table.
type Record struct {
	Country string `json:"country"`
	Slug    string `json:"slug"`
	Year    string `json:"year"`
	Total   string `json:"total"`
	Rate    string `json:"rate"`
}

// Collector scrapes the World Prison Brief.
type Collector struct {
	client   *httpclient.Client
	cache    driven.PageCache
	resolver *countries.Resolver
}

// New creates a collector. cache may be nil; a nil resolver uses the default.
func New(client *httpclient.Client, cache driven.PageCache, resolver *countries.Resolver) *Collector {
	if resolver == nil {
		resolver = countries.Default()
	}
	return &Collector{client: client, cache: cache, resolver: resolver}
}

func (c *Collector) OrganizationCode() string { return OrganizationCode }

// Collect reads the index and then every linked country page.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	return collectors.Stream(ctx, func(ctx context.Context, emit collectors.Emit) error {
		index, err := c.client.Get(ctx, IndexPath, nil)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		slugs, err := ParseIndex(index)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		if err := emit(domain.CollectEvent{Message: fmt.Sprintf("%d country pages", len(slugs))}); err != nil {
			return err
		}

		skipped := 0
		for i, slug := range slugs {
			page, cached, err := c.page(ctx, slug)
			if err != nil {
				return fmt.Errorf("country %s: %w", slug, err)
			}
			records, err := ParseCountry(page, slug)
			if err != nil {
				skipped++
				logger.Warn("wpb: skipping %s: %v", slug, err)
				msg := fmt.Sprintf("%s %d/%d skipped: %v", slug, i+1, len(slugs), err)
				if err := emit(domain.CollectEvent{Message: msg}); err != nil {
					return err
				}
				continue
			}
			if !cached {
				c.store(ctx, slug, page)
			}

			country, resolved := c.resolver.Resolve(records.Name)
			payloads := make([]domain.RawPayload, 0, len(records.Rows))
			for _, r := range records.Rows {
				year, _ := strconv.Atoi(r.Year)
				p, err := collectors.Payload(r, country, year)
				if err != nil {
					return err
				}
				payloads = append(payloads, p)
			}

			msg := fmt.Sprintf("%s %d/%d", records.Name, i+1, len(slugs))
			if cached {
				msg += " (cached)"
			}
			if !resolved {
				msg += " (country name not resolved)"
			}
			if err := emit(domain.CollectEvent{Message: msg, Payloads: payloads}); err != nil {
				return err
			}
		}
		if skipped > 0 {
			return emit(domain.CollectEvent{Message: fmt.Sprintf("%d of %d country pages skipped", skipped, len(slugs))})
		}
		return nil
	})
}

// page returns a country page, from the cache when present. Fetched pages
// are cached by store once they parse.
func (c *Collector) page(ctx context.Context, slug string) ([]byte, bool, error) {
	key := pageKey(slug)
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("page cache get %s: %v", key, err)
		} else if ok {
			return body, true, nil
		}
	}

	body, err := c.client.Get(ctx, "/country/"+slug, nil)
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}

func (c *Collector) store(ctx context.Context, slug string, body []byte) {
	if c.cache == nil {
		return
	}
	key := pageKey(slug)
	if err := c.cache.Put(ctx, key, body); err != nil {
		logger.Warn("page cache put %s: %v", key, err)
	}
}

func pageKey(slug string) string { return "wpb/country/" + slug }
