package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

func TestScoringService_DirectIndicator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WB_DRKWAT",
		domain.Observation{CountryCode: "USA", Year: 2018, Value: 80},
		domain.Observation{CountryCode: "CAN", Year: 2018, Value: 120},
		domain.Observation{CountryCode: "FRA", Year: 2018, Value: 40},
	)

	report, err := h.scoring.ScoreIndicator(ctx, "DRKWAT")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Complete)

	rows, err := h.clean.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{"DRKWAT"}})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	scores := map[string]float64{}
	for _, r := range rows {
		require.NotNil(t, r.Score)
		assert.Empty(t, r.DatasetCode)
		scores[r.CountryCode] = *r.Score
	}
	assert.InDelta(t, 0.5, scores["USA"], 1e-9)
	assert.InDelta(t, 1.0, scores["CAN"], 1e-9)
	assert.InDelta(t, 0.0, scores["FRA"], 1e-9)
}

func TestScoringService_ScoreModeComposite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WB_CREDIT",
		domain.Observation{CountryCode: "USA", Year: 2018, Value: 40},
		domain.Observation{CountryCode: "FRA", Year: 2018, Value: 70},
	)
	h.seed(t, "WB_DPOSIT",
		domain.Observation{CountryCode: "USA", Year: 2018, Value: 60},
	)

	report, err := h.scoring.ScoreIndicator(ctx, "FDEPTH")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Complete)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, map[string]int{"CREDIT": 2, "DPOSIT": 1}, report.Intermediates)

	rows, err := h.clean.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{"FDEPTH"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "USA", rows[0].CountryCode)
	assert.InDelta(t, 0.5, *rows[0].Score, 1e-9)

	inc, err := h.clean.FindIncomplete(ctx, domain.QueryFilters{IndicatorCodes: []string{"FDEPTH"}})
	require.NoError(t, err)
	require.Len(t, inc, 1)
	assert.Equal(t, "FRA", inc[0].CountryCode)
	assert.Equal(t, []string{"DPOSIT"}, inc[0].Missing)

	// Intermediates are stored with their goalposted scores.
	credit, err := h.clean.Find(ctx, domain.QueryFilters{IntermediateCodes: []string{"CREDIT"}})
	require.NoError(t, err)
	require.Len(t, credit, 2)
	assert.InDelta(t, 0.7, *credit[0].Score, 1e-9)
}

func TestScoringService_ValueModeComposite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WPB_PRIPOP", domain.Observation{CountryCode: "USA", Year: 2018, Value: 2.12e6})
	h.seed(t, "WB_POPULN", domain.Observation{CountryCode: "USA", Year: 2018, Value: 327e6})

	_, err := h.scoring.ScoreIndicator(ctx, "PRISON")
	require.NoError(t, err)

	rows, err := h.clean.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{"PRISON"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 648.318, rows[0].Value, 0.01)
	assert.Equal(t, "Prisoners Per 100,000", rows[0].Unit)
	// Inverted against (0, 1000).
	assert.InDelta(t, (1000-rows[0].Value)/1000, *rows[0].Score, 1e-9)
}

func TestScoringService_DivisionByZeroIsIncomplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WPB_PRIPOP", domain.Observation{CountryCode: "USA", Year: 2018, Value: 100})
	h.seed(t, "WB_POPULN", domain.Observation{CountryCode: "USA", Year: 2018, Value: 0})

	report, err := h.scoring.ScoreIndicator(ctx, "PRISON")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Complete)
	assert.Equal(t, 1, report.Incomplete)

	inc, err := h.clean.FindIncomplete(ctx, domain.QueryFilters{})
	require.NoError(t, err)
	require.Len(t, inc, 1)
	assert.Equal(t, domain.ReasonNonFinite, inc[0].Reason)
}

func TestScoringService_RescoreReplacesPartitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WB_CREDIT", domain.Observation{CountryCode: "USA", Year: 2018, Value: 40})
	h.seed(t, "WB_DPOSIT", domain.Observation{CountryCode: "USA", Year: 2018, Value: 60})
	_, err := h.scoring.ScoreIndicator(ctx, "FDEPTH")
	require.NoError(t, err)

	h.seed(t, "WB_DPOSIT")
	report, err := h.scoring.ScoreIndicator(ctx, "FDEPTH")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Complete)
	assert.Equal(t, 1, report.Incomplete)

	rows, err := h.clean.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{"FDEPTH"}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScoringService_ScoresStayInRange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "WB_CREDIT",
		domain.Observation{CountryCode: "USA", Year: 2018, Value: -50},
		domain.Observation{CountryCode: "CAN", Year: 2018, Value: 500},
	)
	h.seed(t, "WB_DPOSIT",
		domain.Observation{CountryCode: "USA", Year: 2018, Value: -10},
		domain.Observation{CountryCode: "CAN", Year: 2018, Value: 1e9},
	)

	_, err := h.scoring.ScoreIndicator(ctx, "FDEPTH")
	require.NoError(t, err)

	all, err := h.clean.Find(ctx, domain.QueryFilters{})
	require.NoError(t, err)
	for _, o := range all {
		if o.Score != nil {
			assert.GreaterOrEqual(t, *o.Score, 0.0)
			assert.LessOrEqual(t, *o.Score, 1.0)
		}
	}
}

func TestScoringService_UnknownIndicator(t *testing.T) {
	h := newHarness(t)
	_, err := h.scoring.ScoreIndicator(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownIndicator)
	assert.Equal(t, "configuration", errkind.KindOf(err))
}

func TestScoringService_BadGoalpostsOnlyAbortTheirIndicator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	m := testMetadata()
	m.Indicators[2].LowerGoalpost, m.Indicators[2].UpperGoalpost = 5, 5
	m.Intermediates[0].UpperGoalpost = domain.Float(0)
	require.NoError(t, h.metadata.Load(ctx, m))

	h.seed(t, "WB_DRKWAT", domain.Observation{CountryCode: "USA", Year: 2018, Value: 80})
	h.seed(t, "WB_CREDIT", domain.Observation{CountryCode: "USA", Year: 2018, Value: 40})
	h.seed(t, "WB_DPOSIT", domain.Observation{CountryCode: "USA", Year: 2018, Value: 60})
	h.seed(t, "WPB_PRIPOP", domain.Observation{CountryCode: "USA", Year: 2018, Value: 2.12e6})
	h.seed(t, "WB_POPULN", domain.Observation{CountryCode: "USA", Year: 2018, Value: 327e6})

	report, err := h.scoring.ScoreIndicator(ctx, "DRKWAT")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Complete)

	for _, code := range []string{"PRISON", "FDEPTH"} {
		_, err := h.scoring.ScoreIndicator(ctx, code)
		require.Error(t, err, code)
		assert.ErrorIs(t, err, domain.ErrInvalidGoalposts)
		assert.Equal(t, "configuration", errkind.KindOf(err))

		rows, err := h.clean.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{code}})
		require.NoError(t, err)
		assert.Empty(t, rows, code)
	}

	ind, err := h.metadata.Indicator("PRISON")
	require.NoError(t, err)
	assert.Equal(t, 5.0, ind.UpperGoalpost)
}
