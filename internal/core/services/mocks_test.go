package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/storage/memory"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// --- Fakes for dispatcher and runner tests ---

// fakeCollector emits fixed events, then fails with err when set.
type fakeCollector struct {
	org    string
	events []domain.CollectEvent
	err    error

	mu       sync.Mutex
	requests []domain.CollectRequest
}

func (c *fakeCollector) OrganizationCode() string { return c.org }

func (c *fakeCollector) Collect(ctx context.Context, req domain.CollectRequest) (<-chan domain.CollectEvent, <-chan error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	events := make(chan domain.CollectEvent)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		for _, ev := range c.events {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if c.err != nil {
			errs <- c.err
		}
	}()
	return events, errs
}

// rowCleaner reads payloads shaped {"c":"USA","y":2019,"v":1.5}.
type rowCleaner struct{}

type row struct {
	Country string   `json:"c"`
	Year    int      `json:"y"`
	Value   *float64 `json:"v"`
}

func (rowCleaner) Clean(_ context.Context, ds domain.DatasetDetail, raws []domain.RawDocument) (domain.CleanResult, error) {
	res := domain.CleanResult{Dropped: map[domain.DropReason]int{}}
	for _, doc := range raws {
		var r row
		if err := json.Unmarshal(doc.Raw, &r); err != nil {
			res.Dropped[domain.DropMalformed]++
			continue
		}
		if r.Value == nil {
			res.Dropped[domain.DropMissingValue]++
			continue
		}
		res.Observations = append(res.Observations, domain.Observation{
			CountryCode: r.Country,
			Year:        r.Year,
			DatasetCode: ds.DatasetCode,
			Value:       *r.Value,
		})
	}
	return res, nil
}

func payload(country string, year int, value float64) domain.RawPayload {
	raw := `{"c":"` + country + `","y":` + strconv.Itoa(year) + `,"v":` + strconv.FormatFloat(value, 'g', -1, 64) + `}`
	return domain.RawPayload{CountryCode: country, Year: year, Raw: json.RawMessage(raw)}
}

func adapterWith(c driven.Cleaner) driven.DatasetAdapter {
	return driven.DatasetAdapter{Collector: &fakeCollector{org: "WorldBank"}, Cleaner: c}
}

type fakeCountries map[string]bool

func (f fakeCountries) IsAlpha3(code string) bool { return f[code] }

var testCountries = fakeCountries{"USA": true, "CAN": true, "FRA": true, "MEX": true}

// fakeQueue records enqueued rebuilds.
type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string]*domain.JobStatus
}

func (q *fakeQueue) EnqueueRebuild(_ context.Context, code, by string) (*domain.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs == nil {
		q.jobs = map[string]*domain.JobStatus{}
	}
	id := "00000000-0000-0000-0000-00000000000" + strconv.Itoa(len(q.jobs))
	st := &domain.JobStatus{ID: id, IndicatorCode: code, RequestedBy: by, State: domain.JobPending}
	q.jobs[id] = st
	return st, nil
}

func (q *fakeQueue) Status(_ context.Context, id string) (*domain.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

// testMetadata is a small hierarchy covering a direct indicator, a
// Score-mode composite and a Value-mode composite.
func testMetadata() *domain.MetadataSet {
	return &domain.MetadataSet{
		Pillars: []domain.PillarDetail{
			{PillarCode: "SUS", Name: "Sustainability", CategoryCodes: []string{"ECO"}},
		},
		Categories: []domain.CategoryDetail{
			{CategoryCode: "ECO", PillarCode: "SUS", IndicatorCodes: []string{"DRKWAT", "FDEPTH", "PRISON"}},
		},
		Indicators: []domain.IndicatorDetail{
			{
				IndicatorCode: "DRKWAT", CategoryCode: "ECO", PillarCode: "SUS",
				LowerGoalpost: 60, UpperGoalpost: 100, Unit: "Percent",
				DatasetCodes: []string{"WB_DRKWAT"},
			},
			{
				IndicatorCode: "FDEPTH", CategoryCode: "ECO", PillarCode: "SUS",
				LowerGoalpost: 0, UpperGoalpost: 1,
				IntermediateCodes: []string{"CREDIT", "DPOSIT"},
				ScoreFunction:     "0.5*CREDIT + 0.5*DPOSIT",
			},
			{
				IndicatorCode: "PRISON", CategoryCode: "ECO", PillarCode: "SUS",
				LowerGoalpost: 0, UpperGoalpost: 1000, Inverted: true,
				IntermediateCodes: []string{"PRIPOP", "POPULN"},
				ValueFunction:     "PRIPOP/POPULN*100000",
				UnitFunction:      "Prisoners Per 100,000",
				ScoreBy:           domain.ScoreByValue,
			},
		},
		Intermediates: []domain.IntermediateDetail{
			{IntermediateCode: "CREDIT", IndicatorCode: "FDEPTH", DatasetCode: "WB_CREDIT",
				LowerGoalpost: domain.Float(0), UpperGoalpost: domain.Float(100)},
			{IntermediateCode: "DPOSIT", IndicatorCode: "FDEPTH", DatasetCode: "WB_DPOSIT",
				LowerGoalpost: domain.Float(0), UpperGoalpost: domain.Float(100)},
			{IntermediateCode: "PRIPOP", IndicatorCode: "PRISON", DatasetCode: "WPB_PRIPOP"},
			{IntermediateCode: "POPULN", IndicatorCode: "PRISON", DatasetCode: "WB_POPULN"},
		},
		Datasets: []domain.DatasetDetail{
			{DatasetCode: "WB_DRKWAT", Unit: "Percent", Source: domain.SourceBinding{OrganizationCode: "WorldBank", QueryCode: "SH.H2O.BASW.ZS"}},
			{DatasetCode: "WB_CREDIT", Source: domain.SourceBinding{OrganizationCode: "WorldBank", QueryCode: "FS.AST.PRVT.GD.ZS"}},
			{DatasetCode: "WB_DPOSIT", Source: domain.SourceBinding{OrganizationCode: "WorldBank", QueryCode: "GFDD.OI.02"}},
			{DatasetCode: "WB_POPULN", Source: domain.SourceBinding{OrganizationCode: "WorldBank", QueryCode: "SP.POP.TOTL"}},
			{DatasetCode: "WPB_PRIPOP", Source: domain.SourceBinding{OrganizationCode: "WPB", QueryCode: "PrisonPopulation"}},
			{DatasetCode: "WB_UNBOUND"},
		},
		CountryGroups: []domain.CountryGroup{
			{Name: "SSPI67", Countries: []string{"USA", "CAN", "FRA"}},
			{Name: "AGGREGATES", Countries: []string{"WLD"}},
		},
	}
}

// harness wires the services over memory stores.
type harness struct {
	raw        *memory.RawStore
	clean      *memory.ObservationStore
	meta       *memory.MetadataStore
	metadata   *MetadataRegistry
	datasets   *DatasetRegistry
	collectors map[string]*fakeCollector
	dispatcher *Dispatcher
	scoring    *ScoringService
	query      *QueryService
	runner     *Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		raw:        memory.NewRawStore(),
		clean:      memory.NewObservationStore(),
		meta:       memory.NewMetadataStore(),
		datasets:   NewDatasetRegistry(),
		collectors: map[string]*fakeCollector{},
	}
	h.metadata = NewMetadataRegistry(nil, h.meta)
	require.NoError(t, h.metadata.Load(context.Background(), testMetadata()))

	for _, ds := range testMetadata().Datasets {
		c := &fakeCollector{org: ds.Source.OrganizationCode}
		h.collectors[ds.DatasetCode] = c
		require.NoError(t, h.datasets.Register(ds.DatasetCode, driven.DatasetAdapter{Collector: c, Cleaner: rowCleaner{}}))
	}

	locks := NewKeyedLock()
	h.dispatcher = NewDispatcher(h.datasets, h.metadata, h.raw, h.clean, testCountries, locks, nil)
	h.scoring = NewScoringService(h.metadata, h.clean, locks, nil)
	h.query = NewQueryService(h.metadata, h.clean)
	h.runner = NewRunner(h.dispatcher, h.scoring, h.metadata, h.raw, h.clean, locks)
	return h
}

// seed stores observations directly in a dataset partition.
func (h *harness) seed(t *testing.T, dataset string, rows ...domain.Observation) {
	t.Helper()
	for i := range rows {
		rows[i] = rows[i].WithClassifier(domain.DatasetClassifier(dataset))
	}
	require.NoError(t, h.clean.Replace(context.Background(), domain.DatasetClassifier(dataset), rows))
}

func drain(ch <-chan string) []string {
	var lines []string
	for l := range ch {
		lines = append(lines, l)
	}
	return lines
}
