package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func rawDoc(country string, year int, payload string) domain.RawDocument {
	return domain.RawDocument{
		Source: domain.Provenance{
			OrganizationCode: "WorldBank",
			QueryCode:        "SH.H2O.SMDW.ZS",
			CollectedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			CollectedBy:      "alice",
			Metadata:         json.RawMessage(`{"page":1}`),
		},
		CountryCode: country,
		Year:        year,
		Raw:         json.RawMessage(payload),
	}
}

func obs(country string, year int, value float64) domain.Observation {
	return domain.Observation{
		CountryCode: country,
		Year:        year,
		DatasetCode: "WB_DRKWAT",
		Value:       value,
		Unit:        "Percent",
		Source:      &domain.SourceRef{OrganizationCode: "WorldBank", QueryCode: "SH.H2O.SMDW.ZS"},
	}
}

func TestNewStore_MigratesOnce(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	require.NoError(t, store.Close())

	// Reopening finds the schema already at the latest version.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestCleanObservations_ScoreCheckConstraint(t *testing.T) {
	store := setupTestStore(t)
	insert := func(score any) error {
		_, err := store.db.Exec(`INSERT INTO clean_observations
			(kind, code, country_code, year, value, score) VALUES ('indicator', 'DRKWAT', 'USA', 2020, 1, ?)`, score)
		return err
	}

	assert.Error(t, insert(1.5))
	assert.Error(t, insert(-0.1))
	require.NoError(t, insert(nil))
	_, err := store.db.Exec(`DELETE FROM clean_observations`)
	require.NoError(t, err)
	require.NoError(t, insert(0.5))
}

func TestRawStore_InsertDeduplicatesAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	raw := setupTestStore(t).RawStore()

	n, err := raw.Insert(ctx, []domain.RawDocument{
		rawDoc("USA", 2020, `{"v":2}`),
		rawDoc("FRA", 2020, `{"v":1}`),
		rawDoc("USA", 2020, `{"v":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = raw.Insert(ctx, []domain.RawDocument{rawDoc("FRA", 2020, `{"v":1}`), rawDoc("FRA", 2021, `{"v":1}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := raw.Find(ctx, "WorldBank", "SH.H2O.SMDW.ZS")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "USA", docs[0].CountryCode)
	assert.Equal(t, "FRA", docs[1].CountryCode)
	assert.Equal(t, 2021, docs[2].Year)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, domain.HashPayload([]byte(`{"v":2}`)), docs[0].PayloadHash)
	assert.Equal(t, "alice", docs[0].Source.CollectedBy)
	assert.True(t, docs[0].Source.CollectedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.JSONEq(t, `{"page":1}`, string(docs[0].Source.Metadata))
	assert.JSONEq(t, `{"v":2}`, string(docs[0].Raw))

	count, err := raw.Count(ctx, "WorldBank", "SH.H2O.SMDW.ZS")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRawStore_Delete(t *testing.T) {
	ctx := context.Background()
	raw := setupTestStore(t).RawStore()
	_, err := raw.Insert(ctx, []domain.RawDocument{rawDoc("USA", 2020, `{}`)})
	require.NoError(t, err)

	n, err := raw.Delete(ctx, "WorldBank", "SH.H2O.SMDW.ZS")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := raw.Find(ctx, "WorldBank", "SH.H2O.SMDW.ZS")
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Deleted documents may be collected again.
	n, err = raw.Insert(ctx, []domain.RawDocument{rawDoc("USA", 2020, `{}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestObservationStore_ReplaceAndFind(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ObservationStore()
	c := domain.DatasetClassifier("WB_DRKWAT")

	require.NoError(t, store.Replace(ctx, c, []domain.Observation{
		obs("USA", 2020, 99), obs("FRA", 2021, 97), obs("FRA", 2020, 98),
	}))
	scored := domain.Observation{CountryCode: "FRA", Year: 2020, IndicatorCode: "DRKWAT", Value: 98, Score: domain.Float(0.9)}
	require.NoError(t, store.Replace(ctx, domain.IndicatorClassifier("DRKWAT"), []domain.Observation{scored}))

	got, err := store.Find(ctx, domain.QueryFilters{})
	require.NoError(t, err)
	want := []domain.Observation{
		obs("FRA", 2020, 98), scored, obs("FRA", 2021, 97), obs("USA", 2020, 99),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Find mismatch (-want +got):\n%s", diff)
	}

	got, err = store.Find(ctx, domain.QueryFilters{IndicatorCodes: []string{"DRKWAT"}, CountryCodes: []string{"FRA"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, *got[0].Score)

	got, err = store.Find(ctx, domain.QueryFilters{DatasetCodes: []string{"WB_DRKWAT"}, YearRangeStart: 2021})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FRA", got[0].CountryCode)

	// Replacing swaps the whole partition.
	require.NoError(t, store.Replace(ctx, c, []domain.Observation{obs("DEU", 2019, 100)}))
	got, err = store.Find(ctx, domain.QueryFilters{DatasetCodes: []string{"WB_DRKWAT"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "DEU", got[0].CountryCode)
}

func TestObservationStore_ReplaceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ObservationStore()
	c := domain.DatasetClassifier("WB_DRKWAT")
	require.NoError(t, store.Replace(ctx, c, []domain.Observation{obs("USA", 2020, 1)}))

	tests := []struct {
		name string
		obs  []domain.Observation
	}{
		{"duplicate key", []domain.Observation{obs("FRA", 2020, 1), obs("FRA", 2020, 2)}},
		{"wrong classifier", []domain.Observation{{CountryCode: "FRA", Year: 2020, DatasetCode: "OTHER"}}},
		{"score out of range", []domain.Observation{{CountryCode: "FRA", Year: 2020, DatasetCode: "WB_DRKWAT", Score: domain.Float(1.5)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Replace(ctx, c, tt.obs)
			require.Error(t, err)
			assert.Equal(t, "integrity", errkind.KindOf(err))

			got, err := store.Find(ctx, domain.QueryFilters{})
			require.NoError(t, err)
			require.Len(t, got, 1, "previous partition must survive")
			assert.Equal(t, "USA", got[0].CountryCode)
		})
	}
}

func TestObservationStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ObservationStore()
	c := domain.DatasetClassifier("WB_DRKWAT")
	require.NoError(t, store.Replace(ctx, c, []domain.Observation{obs("USA", 2020, 1), obs("FRA", 2020, 1)}))

	n, err := store.Delete(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Delete(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestObservationStore_Incomplete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).ObservationStore()

	rows := []domain.IncompleteObservation{
		{CountryCode: "USA", Year: 2020, Intermediates: map[string]float64{"CREDIT": 40}, Missing: []string{"DPOSIT"}, Reason: domain.ReasonMissingIntermediate},
		{CountryCode: "FRA", Year: 2020, Intermediates: map[string]float64{"DPOSIT": 60}, Missing: []string{"CREDIT"}, Reason: domain.ReasonMissingIntermediate},
	}
	require.NoError(t, store.ReplaceIncomplete(ctx, "FDEPTH", rows))

	got, err := store.FindIncomplete(ctx, domain.QueryFilters{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "FRA", got[0].CountryCode)
	assert.Equal(t, "FDEPTH", got[0].IndicatorCode)
	assert.Equal(t, map[string]float64{"DPOSIT": 60}, got[0].Intermediates)

	got, err = store.FindIncomplete(ctx, domain.QueryFilters{IntermediateCodes: []string{"CREDIT"}})
	require.NoError(t, err)
	assert.Len(t, got, 2, "rows holding or missing CREDIT")

	got, err = store.FindIncomplete(ctx, domain.QueryFilters{CountryCodes: []string{"USA"}, IndicatorCodes: []string{"FDEPTH"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"DPOSIT"}, got[0].Missing)

	n, err := store.DeleteIncomplete(ctx, "FDEPTH")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetadataStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	meta := setupTestStore(t).MetadataStore()

	_, err := meta.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	set := &domain.MetadataSet{
		Pillars:    []domain.PillarDetail{{PillarCode: "SUS", Name: "Sustainability", CategoryCodes: []string{"WWB"}}},
		Categories: []domain.CategoryDetail{{CategoryCode: "WWB", PillarCode: "SUS", Name: "Water", IndicatorCodes: []string{"DRKWAT"}}},
		Indicators: []domain.IndicatorDetail{{IndicatorCode: "DRKWAT", Name: "Drinking Water", PillarCode: "SUS",
			CategoryCode: "WWB", LowerGoalpost: 0, UpperGoalpost: 100, DatasetCodes: []string{"WB_DRKWAT"}}},
		Datasets: []domain.DatasetDetail{{DatasetCode: "WB_DRKWAT", Name: "Safe drinking water", Source: domain.SourceBinding{
			OrganizationCode: "WorldBank", QueryCode: "SH.H2O.SMDW.ZS"}}},
		CountryGroups: []domain.CountryGroup{{Name: "SSPI49", Countries: []string{"FRA", "USA"}}},
	}
	require.NoError(t, meta.SaveMetadata(ctx, set))

	got, err := meta.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces rather than appends.
	require.NoError(t, meta.SaveMetadata(ctx, set))
	got, err = meta.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Pillars, 1)
}

func TestMetadataStore_YearRanges(t *testing.T) {
	ctx := context.Background()
	meta := setupTestStore(t).MetadataStore()

	require.NoError(t, meta.SaveYearRange(ctx, "WB_DRKWAT", domain.YearRange{MinYear: 2000, MaxYear: 2020}))
	require.NoError(t, meta.SaveYearRange(ctx, "WB_DRKWAT", domain.YearRange{MinYear: 2001, MaxYear: 2022}))
	require.NoError(t, meta.SaveYearRange(ctx, "UIS_ENRPRI", domain.YearRange{MinYear: 1990, MaxYear: 2019}))

	got, err := meta.YearRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.YearRange{
		"WB_DRKWAT":  {MinYear: 2001, MaxYear: 2022},
		"UIS_ENRPRI": {MinYear: 1990, MaxYear: 2019},
	}, got)
}
