package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
)

type fakeRunner struct {
	lines     []string
	err       error
	ops       []domain.Operation
	principal domain.Principal
	deleted   []string
}

func (f *fakeRunner) Stream(_ context.Context, p domain.Principal, op domain.Operation) (<-chan string, error) {
	f.principal = p
	f.ops = append(f.ops, op)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan string, len(f.lines))
	for _, l := range f.lines {
		ch <- l
	}
	close(ch)
	return ch, nil
}

func (f *fakeRunner) DeleteSeries(_ context.Context, p domain.Principal, c domain.Collection, code string) (*domain.DeleteReport, error) {
	f.principal = p
	f.deleted = append(f.deleted, string(c)+"/"+code)
	return &domain.DeleteReport{Collection: c, Code: code, Raw: 3}, nil
}

type fakeDispatcher struct {
	datasets []string
	deps     map[string][]string
}

func (f *fakeDispatcher) Collect(context.Context, string, domain.CollectContext) (<-chan string, error) {
	return nil, nil
}

func (f *fakeDispatcher) Clean(context.Context, string) (*driving.CleanSummary, error) {
	return nil, nil
}

func (f *fakeDispatcher) ListDatasets() []string { return f.datasets }

func (f *fakeDispatcher) DependenciesOf(code string) ([]string, error) {
	deps, ok := f.deps[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownIndicator, code)
	}
	return deps, nil
}

type fakeQuery struct {
	collection domain.Collection
	filters    domain.QueryFilters
	result     *domain.QueryResult
	country    []domain.Observation
	summary    []domain.ScoreSummary
}

func (f *fakeQuery) Query(_ context.Context, c domain.Collection, filters domain.QueryFilters) (*domain.QueryResult, error) {
	f.collection, f.filters = c, filters
	if f.result == nil {
		return &domain.QueryResult{Collection: c}, nil
	}
	return f.result, nil
}

func (f *fakeQuery) QueryCountry(_ context.Context, code string) ([]domain.Observation, error) {
	f.filters = domain.QueryFilters{CountryCodes: []string{code}}
	return f.country, nil
}

func (f *fakeQuery) Summary(_ context.Context, code string, filters domain.QueryFilters) ([]domain.ScoreSummary, error) {
	filters.IndicatorCodes = []string{code}
	f.filters = filters
	return f.summary, nil
}

type fakeJobs struct {
	enqueued []string
	status   *domain.JobStatus
}

func (f *fakeJobs) EnqueueRebuild(_ context.Context, p domain.Principal, code string) (*domain.JobStatus, error) {
	f.enqueued = append(f.enqueued, code)
	return &domain.JobStatus{ID: "job-1", IndicatorCode: code, RequestedBy: p.Username, State: domain.JobPending}, nil
}

func (f *fakeJobs) JobStatus(_ context.Context, id string) (*domain.JobStatus, error) {
	if f.status == nil || f.status.ID != id {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return f.status, nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(username string) (string, error) {
	return "token-for-" + username, nil
}

// testServices holds the fakes behind the installed factory.
type testServices struct {
	runner     *fakeRunner
	dispatcher *fakeDispatcher
	query      *fakeQuery
	jobs       *fakeJobs
}

// setupTestServices installs fakes for every service and resets the
// command state between tests.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		runner:     &fakeRunner{},
		dispatcher: &fakeDispatcher{deps: map[string][]string{}},
		query:      &fakeQuery{},
		jobs:       &fakeJobs{},
	}
	SetFactory(func(context.Context, Options) (*Services, error) {
		return &Services{
			Runner:     ts.runner,
			Dispatcher: ts.dispatcher,
			Query:      ts.query,
			Jobs:       ts.jobs,
			Tokens:     fakeTokens{},
		}, nil
	})
	services = nil
	actingAs = "tester"
	rebuildAsync = false
	collectIntermediate = ""
	configDir = t.TempDir()

	t.Cleanup(func() {
		SetFactory(nil)
		services = nil
		rootCmd.SetArgs(nil)
	})
	return ts
}

// execute runs the root command and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
