package app

import (
	"fmt"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/config/file"
	ieacleaner "github.com/sspi-index/sspi-engine/internal/cleaners/iea"
	oecdcleaner "github.com/sspi-index/sspi-engine/internal/cleaners/oecd"
	wpbcleaner "github.com/sspi-index/sspi-engine/internal/cleaners/prisonstudies"
	sdgcleaner "github.com/sspi-index/sspi-engine/internal/cleaners/sdg"
	uiscleaner "github.com/sspi-index/sspi-engine/internal/cleaners/uis"
	wbcleaner "github.com/sspi-index/sspi-engine/internal/cleaners/worldbank"
	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/collectors/iea"
	"github.com/sspi-index/sspi-engine/internal/collectors/oecd"
	"github.com/sspi-index/sspi-engine/internal/collectors/prisonstudies"
	"github.com/sspi-index/sspi-engine/internal/collectors/sdg"
	"github.com/sspi-index/sspi-engine/internal/collectors/uis"
	"github.com/sspi-index/sspi-engine/internal/collectors/worldbank"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/countries"
)

// provider is one upstream organization and the datasets it serves.
type provider struct {
	org      string
	baseURL  string
	datasets []collectors.Dataset
	build    func(client *httpclient.Client) driven.DatasetAdapter
}

func providers(cache driven.PageCache, groups oecd.GroupLookup) []provider {
	resolver := countriesResolver()
	return []provider{
		{worldbank.OrganizationCode, worldbank.DefaultBaseURL, worldbank.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: worldbank.New(c), Cleaner: wbcleaner.New(resolver)}
		}},
		{uis.OrganizationCode, uis.DefaultBaseURL, uis.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: uis.New(c), Cleaner: uiscleaner.New(resolver)}
		}},
		{sdg.OrganizationCode, sdg.DefaultBaseURL, sdg.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: sdg.New(c, resolver), Cleaner: sdgcleaner.New(resolver)}
		}},
		{oecd.OrganizationCode, oecd.DefaultBaseURL, oecd.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: oecd.New(c, groups), Cleaner: oecdcleaner.New(resolver)}
		}},
		{iea.OrganizationCode, iea.DefaultBaseURL, iea.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: iea.New(c, resolver), Cleaner: ieacleaner.New(resolver)}
		}},
		{prisonstudies.OrganizationCode, prisonstudies.DefaultBaseURL, prisonstudies.Datasets, func(c *httpclient.Client) driven.DatasetAdapter {
			return driven.DatasetAdapter{Collector: prisonstudies.New(c, cache, resolver), Cleaner: wpbcleaner.New(resolver)}
		}},
	}
}

// Organizations returns the code of every upstream provider.
func Organizations() []string {
	ps := providers(nil, nil)
	orgs := make([]string, 0, len(ps))
	for _, p := range ps {
		orgs = append(orgs, p.org)
	}
	return orgs
}

// RegisterDatasets binds every dataset code to its provider's collector
// and cleaner. Each provider gets one HTTP client so its rate limit holds
// across datasets.
func RegisterDatasets(reg driven.DatasetRegistrar, s *file.Settings, cache driven.PageCache, groups oecd.GroupLookup) error {
	for _, p := range providers(cache, groups) {
		cs := s.Collector(p.org)
		base := p.baseURL
		if cs.BaseURL != "" {
			base = cs.BaseURL
		}
		adapter := p.build(httpclient.New(httpclient.Config{BaseURL: base, MinDelay: cs.MinDelay}))
		for _, d := range p.datasets {
			if err := reg.Register(d.Code, adapter); err != nil {
				return fmt.Errorf("registering %s: %w", p.org, err)
			}
		}
	}
	return nil
}

func countriesResolver() *countries.Resolver {
	return countries.Default()
}
