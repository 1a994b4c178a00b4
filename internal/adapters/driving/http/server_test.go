package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/auth"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/metrics"
)

type fixture struct {
	query   *fakeQuery
	meta    *fakeMetadata
	runner  *fakeRunner
	jobs    *fakeJobs
	tokens  *auth.TokenService
	handler http.Handler
}

func newFixture(t *testing.T, publicReads bool) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenService("test-key", "sspi", time.Hour)
	require.NoError(t, err)
	f := &fixture{
		query: &fakeQuery{},
		meta: &fakeMetadata{
			indicators: map[string]domain.IndicatorDetail{"FDEPTH": {IndicatorCode: "FDEPTH"}},
			groups:     map[string]domain.CountryGroup{"BRICS": {Name: "BRICS", Countries: []string{"BRA", "CHN"}}},
		},
		runner: &fakeRunner{},
		jobs:   &fakeJobs{},
		tokens: tokens,
	}
	f.handler = NewRouter(Config{
		Query:       f.query,
		Metadata:    f.meta,
		Runner:      f.runner,
		Jobs:        f.jobs,
		Tokens:      tokens,
		Metrics:     metrics.New(),
		LoginURL:    "/login",
		PublicReads: publicReads,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, user string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if user != "" {
		token, err := f.tokens.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sspi_http_requests_total")
}

func TestQuery_ParsesFilters(t *testing.T) {
	f := newFixture(t, true)
	score := 0.5
	f.query.result = &domain.QueryResult{Observations: []domain.Observation{
		{CountryCode: "BRA", Year: 2020, IndicatorCode: "FDEPTH", Value: 50, Score: &score},
	}}

	rec := f.do(t, http.MethodGet, "/query/clean?CountryCode=bra,chn&Year=2020&IndicatorCode=FDEPTH", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.CollectionClean, f.query.collection)
	assert.Equal(t, []string{"BRA", "CHN"}, f.query.filters.CountryCodes)
	assert.Equal(t, []int{2020}, f.query.filters.Years)

	var rows []domain.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "BRA", rows[0].CountryCode)
}

func TestQuery_EmptyResultIsArray(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/query/incomplete", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"unsafe value", "/query/clean?CountryCode=US%27", http.StatusBadRequest, "query"},
		{"unsafe key", "/query/clean?Coun$try=USA", http.StatusBadRequest, "query"},
		{"bad year", "/query/clean?Year=abc", http.StatusBadRequest, "query"},
		{"unknown collection", "/query/users", http.StatusNotFound, "query"},
		{"unknown indicator", "/query/indicator/NOPE", http.StatusNotFound, "configuration"},
		{"unknown database", "/query/indicator/FDEPTH?database=raw2", http.StatusNotFound, "query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			rec := f.do(t, http.MethodGet, tt.target, "", nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeError(t, rec).Kind)
		})
	}
}

func TestQueryIndicator_SelectsDatabase(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/query/indicator/FDEPTH?database=incomplete&CountryCode=BRA", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.CollectionIncomplete, f.query.collection)
	assert.Equal(t, []string{"FDEPTH"}, f.query.filters.IndicatorCodes)
	assert.Equal(t, []string{"BRA"}, f.query.filters.CountryCodes)
}

func TestQueryCountryAndSummary(t *testing.T) {
	f := newFixture(t, true)
	f.query.summary = []domain.ScoreSummary{{IndicatorCode: "FDEPTH", Year: 2020, Count: 2}}

	rec := f.do(t, http.MethodGet, "/query/country/usa", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"USA"}, f.query.filters.CountryCodes)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/query/summary/FDEPTH?CountryGroup=BRICS", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BRICS", f.query.filters.CountryGroup)
	assert.Contains(t, rec.Body.String(), `"Count":2`)
}

func TestMetadata(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/metadata/country_groups/BRICS", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Name":"BRICS","Countries":["BRA","CHN"]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metadata/indicator_codes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["FDEPTH"]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metadata/country_groups/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/metadata/spaceships", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func TestReads_RequirePrincipalWhenNotPublic(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/query/clean", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/query/clean", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStream_RequiresPrincipal(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/collect/WB_CREDIT", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authorization", decodeError(t, rec).Kind)

	rec = f.do(t, http.MethodGet, "/collect/WB_CREDIT", "", map[string]string{"Accept": "text/html,application/xhtml+xml"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	assert.Empty(t, f.runner.op.Code, "runner must not be reached")
}

func TestStream_InvalidToken(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/score/FDEPTH", "", map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authorization", decodeError(t, rec).Kind)
}

func TestStream_RelaysLines(t *testing.T) {
	f := newFixture(t, true)
	f.runner.lines = []string{"WB_CREDIT: page 1 of 1", "stored 12 documents", domain.StreamDone}

	rec := f.do(t, http.MethodGet, "/collect/WB_CREDIT?IntermediateCode=CREDIT", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, strings.Join(f.runner.lines, "\n")+"\n", rec.Body.String())

	assert.Equal(t, domain.Principal{Username: "alice"}, f.runner.principal)
	assert.Equal(t, domain.VerbCollect, f.runner.op.Verb)
	assert.Equal(t, "WB_CREDIT", f.runner.op.Code)
	assert.Equal(t, "CREDIT", f.runner.op.Context.IntermediateCode)
}

func TestStream_RefusedBeforeStart(t *testing.T) {
	f := newFixture(t, true)
	f.runner.err = errkind.Configuration.Wrap(fmt.Errorf("%w: WB_NOPE", domain.ErrUnknownDataset))

	rec := f.do(t, http.MethodGet, "/clean/WB_NOPE", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "configuration", decodeError(t, rec).Kind)
}

func TestDeleteSeries(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodPost, "/delete/series/raw/WB_CREDIT", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "raw/WB_CREDIT", f.runner.deleted)
	assert.Contains(t, rec.Body.String(), `"Raw":3`)

	rec = f.do(t, http.MethodPost, "/delete/series/users/X", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/delete/series/raw/WB_CREDIT", "alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobs(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodPost, "/jobs/rebuild/FDEPTH", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var status domain.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "alice", status.RequestedBy)
	assert.Equal(t, domain.JobPending, status.State)

	rec = f.do(t, http.MethodPost, "/jobs/rebuild/FDEPTH", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.jobs.status = &domain.JobStatus{ID: "j2", State: domain.JobSucceeded}
	rec = f.do(t, http.MethodGet, "/jobs/j2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"State":"succeeded"`)

	rec = f.do(t, http.MethodGet, "/jobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{errkind.Query.New("bad"), http.StatusBadRequest, "query"},
		{errkind.Configuration.Wrap(domain.ErrMissingSourceBinding), http.StatusUnprocessableEntity, "configuration"},
		{errkind.Data.New("nan"), http.StatusUnprocessableEntity, "data"},
		{errkind.Integrity.New("dup"), http.StatusConflict, "integrity"},
		{errkind.Upstream.New("503"), http.StatusBadGateway, "upstream"},
		{errkind.Authorization.Wrap(domain.ErrUnauthenticated), http.StatusUnauthorized, "authorization"},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, errkind.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, kind := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
