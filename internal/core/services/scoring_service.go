package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/metrics"
	"github.com/sspi-index/sspi-engine/internal/scoring"
)

// Ensure ScoringService implements the interface.
var _ driving.ScoringService = (*ScoringService)(nil)

// ScoringService derives intermediates from dataset partitions and
// composes indicator scores from them.
type ScoringService struct {
	metadata *MetadataRegistry
	clean    driven.ObservationStore
	locks    *KeyedLock
	metrics  *metrics.Metrics
}

// NewScoringService creates a scoring service. m may be nil.
func NewScoringService(metadata *MetadataRegistry, clean driven.ObservationStore, locks *KeyedLock, m *metrics.Metrics) *ScoringService {
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &ScoringService{metadata: metadata, clean: clean, locks: locks, metrics: m}
}

// ScoreIndicator recomputes one indicator. Configuration errors abort
// before anything is written.
func (s *ScoringService) ScoreIndicator(ctx context.Context, code string) (*domain.ScoreReport, error) {
	ind, err := s.metadata.Indicator(code)
	if err != nil {
		return nil, err
	}
	if err := ind.Goalposts().Validate(); err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("indicator %s: %w", code, err))
	}
	start := time.Now()
	defer s.metrics.ObserveStage("score", start)

	if !ind.IsComposite() {
		return s.scoreDirect(ctx, ind)
	}
	return s.scoreComposite(ctx, ind)
}

// scoreDirect goalposts the observations of an indicator's only dataset.
func (s *ScoringService) scoreDirect(ctx context.Context, ind domain.IndicatorDetail) (*domain.ScoreReport, error) {
	if len(ind.DatasetCodes) == 0 {
		return nil, errkind.Configuration.New("indicator %s has neither intermediates nor datasets", ind.IndicatorCode)
	}
	dataset := ind.DatasetCodes[0]
	src, err := s.clean.Find(ctx, domain.QueryFilters{DatasetCodes: []string{dataset}})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dataset, err)
	}

	out := make([]domain.Observation, 0, len(src))
	for _, o := range src {
		score, err := scoring.Goalpost(o.Value, ind.Goalposts(), ind.Inverted)
		if err != nil {
			return nil, errkind.Configuration.Wrap(err)
		}
		o = o.WithClassifier(domain.IndicatorClassifier(ind.IndicatorCode))
		o.Score = domain.Float(score)
		if ind.Unit != "" {
			o.Unit = ind.Unit
		}
		out = append(out, o)
	}

	if err := s.replace(ctx, domain.IndicatorClassifier(ind.IndicatorCode), out); err != nil {
		return nil, err
	}
	s.metrics.RecordScore(ind.IndicatorCode, len(out), 0)
	logger.Info("score %s: %d observations from %s", ind.IndicatorCode, len(out), dataset)
	return &domain.ScoreReport{IndicatorCode: ind.IndicatorCode, Complete: len(out)}, nil
}

func (s *ScoringService) scoreComposite(ctx context.Context, ind domain.IndicatorDetail) (*domain.ScoreReport, error) {
	spec, err := s.metadata.ZipSpec(ind.IndicatorCode)
	if err != nil {
		return nil, err
	}

	// Resolve everything before the first write.
	details := make([]domain.IntermediateDetail, 0, len(ind.IntermediateCodes))
	for _, code := range ind.IntermediateCodes {
		im, err := s.metadata.Intermediate(code)
		if err != nil {
			return nil, errkind.Configuration.Wrap(err)
		}
		if g, ok := im.Goalposts(); ok {
			if err := g.Validate(); err != nil {
				return nil, errkind.Configuration.Wrap(fmt.Errorf("intermediate %s: %w", code, err))
			}
		}
		details = append(details, im)
	}

	report := &domain.ScoreReport{
		IndicatorCode: ind.IndicatorCode,
		Intermediates: make(map[string]int, len(details)),
	}
	var inputs []domain.Observation
	for _, im := range details {
		obs, err := s.deriveIntermediate(ctx, im)
		if err != nil {
			return nil, err
		}
		report.Intermediates[im.IntermediateCode] = len(obs)
		inputs = append(inputs, obs...)
	}

	res, err := scoring.Zip(inputs, spec)
	if err != nil {
		return nil, errkind.Configuration.Wrap(err)
	}
	for _, k := range res.Duplicates {
		logger.Warn("score %s: duplicate intermediate %s, keeping the later record", ind.IndicatorCode, k)
	}

	unlock := s.locks.Lock(domain.IndicatorClassifier(ind.IndicatorCode).String())
	defer unlock()
	if err := s.clean.Replace(ctx, domain.IndicatorClassifier(ind.IndicatorCode), res.Complete); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", ind.IndicatorCode, err)
	}
	if err := s.clean.ReplaceIncomplete(ctx, ind.IndicatorCode, res.Incomplete); err != nil {
		return nil, fmt.Errorf("replacing incomplete %s: %w", ind.IndicatorCode, err)
	}

	report.Complete = len(res.Complete)
	report.Incomplete = len(res.Incomplete)
	report.Duplicates = len(res.Duplicates)
	s.metrics.RecordScore(ind.IndicatorCode, report.Complete, report.Incomplete)
	logger.Info("score %s: %d complete, %d incomplete", ind.IndicatorCode, report.Complete, report.Incomplete)
	return report, nil
}

// deriveIntermediate re-classifies a dataset partition as an intermediate,
// scoring it when the intermediate declares goalposts, and stores it.
func (s *ScoringService) deriveIntermediate(ctx context.Context, im domain.IntermediateDetail) ([]domain.Observation, error) {
	classifier := domain.IntermediateClassifier(im.IntermediateCode)
	if im.DatasetCode == "" {
		// Maintained directly in clean by an operator.
		obs, err := s.clean.Find(ctx, domain.QueryFilters{IntermediateCodes: []string{im.IntermediateCode}})
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", classifier, err)
		}
		return obs, nil
	}

	src, err := s.clean.Find(ctx, domain.QueryFilters{DatasetCodes: []string{im.DatasetCode}})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", im.DatasetCode, err)
	}
	g, scored := im.Goalposts()
	out := make([]domain.Observation, 0, len(src))
	for _, o := range src {
		o = o.WithClassifier(classifier)
		o.Score = nil
		if im.Unit != "" {
			o.Unit = im.Unit
		}
		if scored {
			v, err := scoring.Goalpost(o.Value, g, im.Inverted)
			if err != nil {
				return nil, errkind.Configuration.Wrap(err)
			}
			o.Score = domain.Float(v)
		}
		out = append(out, o)
	}
	if err := s.replace(ctx, classifier, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScoringService) replace(ctx context.Context, c domain.Classifier, obs []domain.Observation) error {
	unlock := s.locks.Lock(c.String())
	defer unlock()
	if err := s.clean.Replace(ctx, c, obs); err != nil {
		return fmt.Errorf("replacing %s: %w", c, err)
	}
	return nil
}
