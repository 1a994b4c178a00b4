package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/metrics"
)

// Ensure Dispatcher implements the interface.
var _ driving.Dispatcher = (*Dispatcher)(nil)

// CountryValidator reports whether a code is an assigned alpha-3 code.
type CountryValidator interface {
	IsAlpha3(code string) bool
}

// Dispatcher routes collect and clean requests to dataset adapters and
// owns writes to the raw store and to dataset partitions of clean.
type Dispatcher struct {
	datasets  *DatasetRegistry
	metadata  *MetadataRegistry
	raw       driven.RawStore
	clean     driven.ObservationStore
	countries CountryValidator
	locks     *KeyedLock
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(
	datasets *DatasetRegistry,
	metadata *MetadataRegistry,
	raw driven.RawStore,
	clean driven.ObservationStore,
	countries CountryValidator,
	locks *KeyedLock,
	m *metrics.Metrics,
) *Dispatcher {
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &Dispatcher{
		datasets:  datasets,
		metadata:  metadata,
		raw:       raw,
		clean:     clean,
		countries: countries,
		locks:     locks,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// resolve returns the adapter and metadata of a dataset code.
func (d *Dispatcher) resolve(code string) (driven.DatasetAdapter, domain.DatasetDetail, error) {
	adapter, err := d.datasets.Lookup(code)
	if err != nil {
		return adapter, domain.DatasetDetail{}, err
	}
	detail, err := d.metadata.Dataset(code)
	if err != nil || detail.Source.IsZero() {
		return adapter, detail, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrMissingSourceBinding, code))
	}
	return adapter, detail, nil
}

// Collect starts a collection and returns its progress stream.
func (d *Dispatcher) Collect(ctx context.Context, code string, cc domain.CollectContext) (<-chan string, error) {
	adapter, detail, err := d.resolve(code)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		start := time.Now()
		defer d.metrics.ObserveStage("collect", start)

		// Stops the collector if we return early.
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		req := domain.CollectRequest{DatasetCode: code, Binding: detail.Source, Context: cc}
		events, errs := adapter.Collector.Collect(cctx, req)
		if err := d.consume(cctx, req, events, errs, out); err != nil {
			d.metrics.IncCollectError(code)
			logger.Warn("collect %s stopped: %v", code, err)
			send(ctx, out, domain.StreamErrorPrefix+err.Error())
		}
	}()
	return out, nil
}

// consume stores each event's payloads before forwarding its message, so
// a consumer that has seen a message knows its page is persisted. The
// collector is released only after the message has been taken.
func (d *Dispatcher) consume(
	ctx context.Context,
	req domain.CollectRequest,
	events <-chan domain.CollectEvent,
	errs <-chan error,
	out chan<- string,
) error {
	total := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}

		case ev, ok := <-events:
			if !ok {
				// A collector may close events before its error is read.
				if errs != nil {
					if err := <-errs; err != nil {
						return err
					}
				}
				logger.Info("collect %s complete: %d new raw documents", req.DatasetCode, total)
				return nil
			}
			n, err := d.store(ctx, req, ev.Payloads)
			if err != nil {
				return err
			}
			total += n
			msg := ev.Message
			if len(ev.Payloads) > 0 {
				msg = fmt.Sprintf("%s (%d stored, %d already present)", msg, n, len(ev.Payloads)-n)
			}
			if msg != "" && !send(ctx, out, msg) {
				return ctx.Err()
			}
			ev.Handled()
		}
	}
}

func (d *Dispatcher) store(ctx context.Context, req domain.CollectRequest, payloads []domain.RawPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	prov := domain.Provenance{
		OrganizationCode: req.Binding.OrganizationCode,
		QueryCode:        req.Binding.QueryCode,
		CollectedAt:      d.now(),
		CollectedBy:      req.Context.Username,
		IntermediateCode: req.Context.IntermediateCode,
		Metadata:         req.Context.Metadata,
	}
	docs := make([]domain.RawDocument, len(payloads))
	for i, p := range payloads {
		docs[i] = domain.RawDocument{
			ID:          uuid.NewString(),
			Source:      prov,
			CountryCode: p.CountryCode,
			Year:        p.Year,
			PayloadHash: domain.HashPayload(p.Raw),
			Raw:         p.Raw,
		}
	}

	unlock := d.locks.Lock("raw:" + req.DatasetCode)
	defer unlock()
	n, err := d.raw.Insert(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("storing raw documents: %w", err)
	}
	d.metrics.AddRawInserted(req.DatasetCode, n)
	return n, nil
}

// Clean rebuilds a dataset's clean partition from its raw documents.
func (d *Dispatcher) Clean(ctx context.Context, code string) (*driving.CleanSummary, error) {
	adapter, detail, err := d.resolve(code)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer d.metrics.ObserveStage("clean", start)

	unlock := d.locks.Lock(domain.DatasetClassifier(code).String())
	defer unlock()

	raws, err := d.raw.Find(ctx, detail.Source.OrganizationCode, detail.Source.QueryCode)
	if err != nil {
		return nil, fmt.Errorf("reading raw documents of %s: %w", code, err)
	}

	res, err := adapter.Cleaner.Clean(ctx, detail, raws)
	if err != nil {
		return nil, fmt.Errorf("cleaning %s: %w", code, err)
	}

	obs, dropped := d.admit(code, detail, res)
	if err := d.clean.Replace(ctx, domain.DatasetClassifier(code), obs); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", code, err)
	}

	summary := &driving.CleanSummary{DatasetCode: code, Observations: obs, Dropped: dropped}
	if yr, ok := domain.RangeOf(obs); ok {
		summary.Range = &yr
		if err := d.metadata.RecordYearRange(ctx, code, yr); err != nil {
			logger.Warn("recording year range of %s: %v", code, err)
		}
	}

	reasons := make(map[string]int, len(dropped))
	for r, n := range dropped {
		reasons[string(r)] = n
	}
	d.metrics.RecordClean(code, len(obs), reasons)
	logger.Info("clean %s: %d observations from %d raw documents, %d dropped",
		code, len(obs), len(raws), res.DroppedTotal())
	return summary, nil
}

// admit enforces store invariants on cleaner output: classifier, country
// validity and (country, year) uniqueness with the last record winning.
func (d *Dispatcher) admit(code string, detail domain.DatasetDetail, res domain.CleanResult) ([]domain.Observation, map[domain.DropReason]int) {
	dropped := make(map[domain.DropReason]int, len(res.Dropped))
	for r, n := range res.Dropped {
		dropped[r] += n
	}

	type key struct {
		country string
		year    int
	}
	index := map[key]int{}
	var obs []domain.Observation
	for _, o := range res.Observations {
		o = o.WithClassifier(domain.DatasetClassifier(code))
		if o.Unit == "" {
			o.Unit = detail.Unit
		}
		if o.Source == nil {
			o.Source = &domain.SourceRef{
				OrganizationCode: detail.Source.OrganizationCode,
				QueryCode:        detail.Source.QueryCode,
			}
		}
		if !d.countryAllowed(o.CountryCode) {
			dropped[domain.DropInvalidCountry]++
			continue
		}
		if err := o.Validate(); err != nil {
			if errors.Is(err, domain.ErrScoreRange) {
				logger.Warn("clean %s: rejecting %s/%d: %v", code, o.CountryCode, o.Year, err)
			}
			dropped[domain.DropMalformed]++
			continue
		}
		k := key{o.CountryCode, o.Year}
		if i, dup := index[k]; dup {
			logger.Warn("clean %s: duplicate observation %s/%d, keeping the later record", code, k.country, k.year)
			obs[i] = o
			dropped[domain.DropDuplicate]++
			continue
		}
		index[k] = len(obs)
		obs = append(obs, o)
	}
	domain.SortObservations(obs)
	return obs, dropped
}

func (d *Dispatcher) countryAllowed(code string) bool {
	if d.countries != nil && d.countries.IsAlpha3(code) {
		return true
	}
	return d.metadata.PermitsCountry(code)
}

// ListDatasets returns registered dataset codes.
func (d *Dispatcher) ListDatasets() []string {
	return d.datasets.Codes()
}

// DependenciesOf returns the datasets an indicator reads, directly or
// through its intermediates.
func (d *Dispatcher) DependenciesOf(indicatorCode string) ([]string, error) {
	ind, err := d.metadata.Indicator(indicatorCode)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, ds := range ind.DatasetCodes {
		set[ds] = true
	}
	for _, code := range ind.IntermediateCodes {
		im, err := d.metadata.Intermediate(code)
		if err != nil {
			return nil, errkind.Configuration.Wrap(err)
		}
		if im.DatasetCode != "" {
			set[im.DatasetCode] = true
		}
	}
	deps := make([]string, 0, len(set))
	for ds := range set {
		deps = append(deps, ds)
	}
	sort.Strings(deps)
	return deps, nil
}

// send delivers msg unless ctx ends first.
func send(ctx context.Context, out chan<- string, msg string) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
