package prisonstudies

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/collectors"
	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

const indexPage = `<html><body><ul>
	<li><a href="/country/united-states-america">United States of America</a></li>
	<li><a href="/country/myanmar-formerly-burma">Myanmar</a></li>
	<li><a href="/country/united-states-america">again</a></li>
	<li><a href="/about-us">About</a></li>
</ul></body></html>`

const usaPage = `<html><body>
<h1>United States of America</h1>
<table><tr><th>Prison population total</th><td>1,808,100</td></tr></table>
<table>
	<tr><th>Year</th><th>Prison population total</th><th>Prison population rate</th></tr>
	<tr><td>2016</td><td>2,157,800</td><td>666</td></tr>
	<tr><td>2018</td><td>2,121,600</td><td>655</td></tr>
</table>
</body></html>`

const myanmarPage = `<html><body>
<h1> Myanmar (formerly Burma) </h1>
<table>
	<tr><th>Year</th><th>Total</th><th>Rate</th></tr>
	<tr><td>2017</td><td>92,000</td><td>172</td></tr>
</table>
</body></html>`

func TestParseIndex(t *testing.T) {
	slugs, err := ParseIndex([]byte(indexPage))
	require.NoError(t, err)
	assert.Equal(t, []string{"united-states-america", "myanmar-formerly-burma"}, slugs)
}

func TestParseCountry(t *testing.T) {
	page, err := ParseCountry([]byte(usaPage), "united-states-america")
	require.NoError(t, err)
	assert.Equal(t, "United States of America", page.Name)
	assert.Equal(t, []Record{
		{Country: "United States of America", Slug: "united-states-america", Year: "2016", Total: "2,157,800", Rate: "666"},
		{Country: "United States of America", Slug: "united-states-america", Year: "2018", Total: "2,121,600", Rate: "655"},
	}, page.Rows)

	_, err = ParseCountry([]byte(`<html><h1>Nowhere</h1></html>`), "nowhere")
	assert.ErrorIs(t, err, ErrNoTrendTable)
}

type memCache struct {
	mu    sync.Mutex
	pages map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[key]
	return p, ok, nil
}

func (m *memCache) Put(_ context.Context, key string, page []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = page
	return nil
}

func TestCollector_UsesPageCache(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case IndexPath:
			_, _ = w.Write([]byte(indexPage))
		case "/country/united-states-america":
			_, _ = w.Write([]byte(usaPage))
		case "/country/myanmar-formerly-burma":
			_, _ = w.Write([]byte(myanmarPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := &memCache{pages: map[string][]byte{}}
	c := New(httpclient.New(httpclient.Config{BaseURL: srv.URL, MinDelay: -1}), cache, nil)
	req := domain.CollectRequest{Binding: domain.SourceBinding{OrganizationCode: OrganizationCode, QueryCode: "PrisonPopulation"}}

	run := func() []domain.CollectEvent {
		events, errs := c.Collect(context.Background(), req)
		var got []domain.CollectEvent
		for ev := range events {
			ev.Handled()
			got = append(got, ev)
		}
		require.NoError(t, <-errs)
		return got
	}

	first := run()
	require.Len(t, first, 3)
	assert.Equal(t, "2 country pages", first[0].Message)
	require.Len(t, first[1].Payloads, 2)
	assert.Equal(t, "USA", first[1].Payloads[0].CountryCode)
	assert.Equal(t, 2016, first[1].Payloads[0].Year)
	assert.Equal(t, "MMR", first[2].Payloads[0].CountryCode)

	second := run()
	assert.Contains(t, second[1].Message, "(cached)")
	assert.Equal(t, 1, hits["/country/united-states-america"])
	assert.Equal(t, 2, hits[IndexPath])
}

func TestCollector_SkipsPagesWithoutTrendTable(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case IndexPath:
			_, _ = w.Write([]byte(`<ul>
				<li><a href="/country/scotland">Scotland</a></li>
				<li><a href="/country/united-states-america">USA</a></li>
				<li><a href="/country/myanmar-formerly-burma">Myanmar</a></li>
			</ul>`))
		case "/country/scotland":
			_, _ = w.Write([]byte(`<html><h1>Scotland</h1><p>No data.</p></html>`))
		case "/country/united-states-america":
			_, _ = w.Write([]byte(usaPage))
		case "/country/myanmar-formerly-burma":
			_, _ = w.Write([]byte(myanmarPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := &memCache{pages: map[string][]byte{}}
	c := New(httpclient.New(httpclient.Config{BaseURL: srv.URL, MinDelay: -1}), cache, nil)
	req := domain.CollectRequest{Binding: domain.SourceBinding{OrganizationCode: OrganizationCode, QueryCode: "PrisonPopulation"}}

	got, err := collectors.Drain(c.Collect(context.Background(), req))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Contains(t, got[1].Message, "scotland 1/3 skipped")
	assert.Empty(t, got[1].Payloads)
	assert.Equal(t, "USA", got[2].Payloads[0].CountryCode)
	assert.Equal(t, "MMR", got[3].Payloads[0].CountryCode)
	assert.Equal(t, "1 of 3 country pages skipped", got[4].Message)

	// Only pages that parsed are cached.
	_, ok, _ := cache.Get(context.Background(), "wpb/country/scotland")
	assert.False(t, ok)
	_, err = collectors.Drain(c.Collect(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, 2, hits["/country/scotland"])
	assert.Equal(t, 1, hits["/country/united-states-america"])
}

func TestCollector_TransportErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == IndexPath {
			_, _ = w.Write([]byte(indexPage))
			return
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(httpclient.New(httpclient.Config{BaseURL: srv.URL, MinDelay: -1}), nil, nil)
	got, err := collectors.Drain(c.Collect(context.Background(), domain.CollectRequest{
		Binding: domain.SourceBinding{OrganizationCode: OrganizationCode, QueryCode: "PrisonPopulation"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country united-states-america")
	assert.Len(t, got, 1)
}
