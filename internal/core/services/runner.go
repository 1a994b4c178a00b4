package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// Ensure Runner implements the interface.
var _ driving.Runner = (*Runner)(nil)

// DefaultCleanParallelism bounds concurrent clean runs during a rebuild.
const DefaultCleanParallelism = 4

// Runner turns pipeline operations into line streams and checks that
// every mutating request carries a principal.
type Runner struct {
	dispatcher driving.Dispatcher
	scoring    driving.ScoringService
	metadata   *MetadataRegistry
	raw        driven.RawStore
	clean      driven.ObservationStore
	locks      *KeyedLock

	// CleanParallelism bounds the clean fan-out of a rebuild.
	CleanParallelism int
}

// NewRunner creates a runner.
func NewRunner(
	dispatcher driving.Dispatcher,
	scoring driving.ScoringService,
	metadata *MetadataRegistry,
	raw driven.RawStore,
	clean driven.ObservationStore,
	locks *KeyedLock,
) *Runner {
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &Runner{
		dispatcher:       dispatcher,
		scoring:          scoring,
		metadata:         metadata,
		raw:              raw,
		clean:            clean,
		locks:            locks,
		CleanParallelism: DefaultCleanParallelism,
	}
}

func authorize(p domain.Principal) error {
	if !p.Authenticated() {
		return errkind.Authorization.Wrap(domain.ErrUnauthenticated)
	}
	return nil
}

// Stream validates op and starts it. Errors found before the first side
// effect are returned directly; later failures become an error line. The
// stream always ends with domain.StreamDone.
func (r *Runner) Stream(ctx context.Context, principal domain.Principal, op domain.Operation) (<-chan string, error) {
	if err := authorize(principal); err != nil {
		return nil, err
	}
	if op.Context.Username == "" {
		op.Context.Username = principal.Username
	}

	var run func(ctx context.Context, emit func(string) bool) error
	switch op.Verb {
	case domain.VerbCollect:
		lines, err := r.dispatcher.Collect(ctx, op.Code, op.Context)
		if err != nil {
			return nil, err
		}
		run = func(ctx context.Context, emit func(string) bool) error {
			return forward(ctx, lines, emit)
		}
	case domain.VerbClean:
		if err := r.checkDataset(op.Code); err != nil {
			return nil, err
		}
		run = func(ctx context.Context, emit func(string) bool) error {
			return r.runClean(ctx, op.Code, emit)
		}
	case domain.VerbScore:
		if _, err := r.metadata.Indicator(op.Code); err != nil {
			return nil, err
		}
		run = func(ctx context.Context, emit func(string) bool) error {
			return r.runScore(ctx, op.Code, emit)
		}
	case domain.VerbRebuild:
		deps, err := r.dispatcher.DependenciesOf(op.Code)
		if err != nil {
			return nil, err
		}
		run = func(ctx context.Context, emit func(string) bool) error {
			return r.runRebuild(ctx, op, deps, emit)
		}
	default:
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: operation %q", domain.ErrInvalidInput, op.Verb))
	}

	logger.Info("%s %s requested by %s", op.Verb, op.Code, principal.Username)
	out := make(chan string)
	go func() {
		defer close(out)
		emit := func(line string) bool { return send(ctx, out, line) }
		if err := run(ctx, emit); err != nil {
			logger.Warn("%s %s failed: %v", op.Verb, op.Code, err)
			if !emit(domain.StreamErrorPrefix + err.Error()) {
				return
			}
		}
		emit(domain.StreamDone)
	}()
	return out, nil
}

func (r *Runner) checkDataset(code string) error {
	for _, c := range r.dispatcher.ListDatasets() {
		if c == code {
			return nil
		}
	}
	return errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownDataset, code))
}

// forward relays a collect stream. An error line from the dispatcher
// becomes the run's error so callers can stop.
func forward(ctx context.Context, lines <-chan string, emit func(string) bool) error {
	var failure error
	for line := range lines {
		if msg, ok := strings.CutPrefix(line, domain.StreamErrorPrefix); ok {
			failure = errors.New(msg)
			continue
		}
		if !emit(line) {
			// Drain so the dispatcher goroutine can exit.
			for range lines {
			}
			return ctx.Err()
		}
	}
	return failure
}

func (r *Runner) runClean(ctx context.Context, code string, emit func(string) bool) error {
	summary, err := r.dispatcher.Clean(ctx, code)
	if err != nil {
		return err
	}
	emit(cleanLine(summary))
	return nil
}

func cleanLine(s *driving.CleanSummary) string {
	dropped := 0
	for _, n := range s.Dropped {
		dropped += n
	}
	line := fmt.Sprintf("cleaned %s: %d observations, %d dropped", s.DatasetCode, len(s.Observations), dropped)
	if s.Range != nil {
		line += fmt.Sprintf(", years %d-%d", s.Range.MinYear, s.Range.MaxYear)
	}
	return line
}

func (r *Runner) runScore(ctx context.Context, code string, emit func(string) bool) error {
	report, err := r.scoring.ScoreIndicator(ctx, code)
	if err != nil {
		return err
	}
	emit(fmt.Sprintf("scored %s: %d complete, %d incomplete", report.IndicatorCode, report.Complete, report.Incomplete))
	return nil
}

// runRebuild collects every dependency in turn, cleans them concurrently
// and scores the indicator. A failed collection stops the rebuild.
func (r *Runner) runRebuild(ctx context.Context, op domain.Operation, deps []string, emit func(string) bool) error {
	for _, ds := range deps {
		if !emit("collecting " + ds) {
			return ctx.Err()
		}
		lines, err := r.dispatcher.Collect(ctx, ds, op.Context)
		if err != nil {
			return err
		}
		if err := forward(ctx, lines, emit); err != nil {
			return fmt.Errorf("collect %s: %w", ds, err)
		}
	}

	summaries := make([]*driving.CleanSummary, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.CleanParallelism
	if limit <= 0 {
		limit = DefaultCleanParallelism
	}
	g.SetLimit(limit)
	for i, ds := range deps {
		g.Go(func() error {
			s, err := r.dispatcher.Clean(gctx, ds)
			if err != nil {
				return fmt.Errorf("clean %s: %w", ds, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, s := range summaries {
		if !emit(cleanLine(s)) {
			return ctx.Err()
		}
	}
	return r.runScore(ctx, op.Code, emit)
}

// DeleteSeries removes the partitions named code from a collection. In
// clean that is every classifier kind; in incomplete the indicator's
// partition; in raw the documents of the dataset's source binding.
func (r *Runner) DeleteSeries(ctx context.Context, principal domain.Principal, collection domain.Collection, code string) (*domain.DeleteReport, error) {
	if err := authorize(principal); err != nil {
		return nil, err
	}
	if !domain.IsSafeFilterValue(code) || code == "" {
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: %q", domain.ErrUnsafeFilter, code))
	}
	report := &domain.DeleteReport{Collection: collection, Code: code}

	switch collection {
	case domain.CollectionClean:
		report.Deleted = map[domain.ClassifierKind]int{}
		for _, c := range []domain.Classifier{
			domain.DatasetClassifier(code),
			domain.IntermediateClassifier(code),
			domain.IndicatorClassifier(code),
		} {
			n, err := r.deleteClassifier(ctx, c)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				report.Deleted[c.Kind] = n
			}
		}
	case domain.CollectionIncomplete:
		n, err := r.clean.DeleteIncomplete(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("deleting incomplete %s: %w", code, err)
		}
		report.Incomplete = n
	case domain.CollectionRaw:
		ds, err := r.metadata.Dataset(code)
		if err != nil || ds.Source.IsZero() {
			return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrMissingSourceBinding, code))
		}
		unlock := r.locks.Lock("raw:" + code)
		defer unlock()
		n, err := r.raw.Delete(ctx, ds.Source.OrganizationCode, ds.Source.QueryCode)
		if err != nil {
			return nil, fmt.Errorf("deleting raw %s: %w", code, err)
		}
		report.Raw = n
	default:
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: %q", domain.ErrUnknownCollection, collection))
	}

	logger.Info("delete %s/%s by %s", collection, code, principal.Username)
	return report, nil
}

func (r *Runner) deleteClassifier(ctx context.Context, c domain.Classifier) (int, error) {
	unlock := r.locks.Lock(c.String())
	defer unlock()
	n, err := r.clean.Delete(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", c, err)
	}
	return n, nil
}
