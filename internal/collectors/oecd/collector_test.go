package oecd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/collectors/httpclient"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

const message = `{"data":{
	"dataSets":[{"observations":{
		"0:0:0":[5.1,null],
		"1:0:1":[7.25],
		"0:0:1":["NaN"]
	}}],
	"structures":[{"dimensions":{"observation":[
		{"id":"REF_AREA","values":[{"id":"USA","name":"United States"},{"id":"FRA","name":"France"}]},
		{"id":"MEASURE","values":[{"id":"GHG"}]},
		{"id":"TIME_PERIOD","values":[{"id":"2018"},{"id":"2019"}]}
	]}}]
}}`

type groups map[string][]string

func (g groups) CountryGroup(name string) (domain.CountryGroup, error) {
	c, ok := g[name]
	if !ok {
		return domain.CountryGroup{}, domain.ErrUnknownCountryGroup
	}
	return domain.CountryGroup{Name: name, Countries: c}, nil
}

func TestMessage_Flatten(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(message), &m))

	recs, err := m.Flatten()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, map[string]string{"REF_AREA": "USA", "MEASURE": "GHG", "TIME_PERIOD": "2018"}, recs[0].Dimensions)
	assert.Equal(t, 5.1, recs[0].Value)
	assert.Equal(t, "NaN", recs[1].Value)
	assert.Equal(t, "FRA", recs[2].Dimensions["REF_AREA"])
}

func TestMessage_FlattenRejectsBadIndex(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"dataSets":[{"observations":{"9:0":[1]}}],
		"structure":{"dimensions":{"observation":[{"id":"REF_AREA","values":[{"id":"USA"}]},{"id":"TIME_PERIOD","values":[{"id":"2018"}]}]}}}}`), &m))
	_, err := m.Flatten()
	assert.Error(t, err)
}

func TestCollector_ExpandsCountryGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/OECD.ENV.EPI,DSD_AIR_GHG@DF_AIR_GHG,1.0/USA+FRA.A.GHG", r.URL.Path)
		assert.Equal(t, "AllDimensions", r.URL.Query().Get("dimensionAtObservation"))
		_, _ = w.Write([]byte(message))
	}))
	defer srv.Close()

	c := New(httpclient.New(httpclient.Config{BaseURL: srv.URL, MinDelay: -1}), groups{"SSPI67": {"USA", "FRA"}})
	events, errs := c.Collect(context.Background(), domain.CollectRequest{Binding: domain.SourceBinding{
		OrganizationCode: OrganizationCode,
		QueryCode:        "OECD.ENV.EPI,DSD_AIR_GHG@DF_AIR_GHG,1.0",
		Params:           map[string]string{"key": "{countries}.A.GHG"},
	}})

	var got []domain.CollectEvent
	for ev := range events {
		ev.Handled()
		got = append(got, ev)
	}
	require.NoError(t, <-errs)
	require.Len(t, got, 1)
	require.Len(t, got[0].Payloads, 3)
	assert.Equal(t, "USA", got[0].Payloads[0].CountryCode)
	assert.Equal(t, 2018, got[0].Payloads[0].Year)
}

func TestCollector_UnknownGroupIsConfiguration(t *testing.T) {
	c := New(httpclient.New(httpclient.Config{BaseURL: "http://127.0.0.1:1", MinDelay: -1}), groups{})
	events, errs := c.Collect(context.Background(), domain.CollectRequest{Binding: domain.SourceBinding{
		OrganizationCode: OrganizationCode, QueryCode: "X",
		Params: map[string]string{"key": "{countries}.A", "group": "G7"},
	}})
	for ev := range events {
		ev.Handled()
	}
	err := <-errs
	assert.ErrorIs(t, err, domain.ErrUnknownCountryGroup)
	assert.Equal(t, "configuration", errkind.KindOf(err))
}
