package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// Metadata document kinds as stored in metadata_documents.
const (
	docPillar       = "pillar"
	docCategory     = "category"
	docIndicator    = "indicator"
	docIntermediate = "intermediate"
	docDataset      = "dataset"
	docCountryGroup = "country_group"
)

// MetadataStore implements driven.MetadataStore and reads back the last
// saved set.
type MetadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*MetadataStore)(nil)

type metadataDoc struct {
	kind string
	code string
	body any
}

// SaveMetadata replaces every stored metadata document with set.
func (s *MetadataStore) SaveMetadata(ctx context.Context, set *domain.MetadataSet) error {
	var docs []metadataDoc
	for _, p := range set.Pillars {
		docs = append(docs, metadataDoc{docPillar, p.PillarCode, p})
	}
	for _, c := range set.Categories {
		docs = append(docs, metadataDoc{docCategory, c.CategoryCode, c})
	}
	for _, i := range set.Indicators {
		docs = append(docs, metadataDoc{docIndicator, i.IndicatorCode, i})
	}
	for _, im := range set.Intermediates {
		docs = append(docs, metadataDoc{docIntermediate, im.IntermediateCode, im})
	}
	for _, d := range set.Datasets {
		docs = append(docs, metadataDoc{docDataset, d.DatasetCode, d})
	}
	for _, g := range set.CountryGroups {
		docs = append(docs, metadataDoc{docCountryGroup, g.Name, g})
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM metadata_documents"); err != nil {
		return fmt.Errorf("clearing metadata: %w", err)
	}
	for i, d := range docs {
		body, err := json.Marshal(d.body)
		if err != nil {
			return fmt.Errorf("marshalling %s %s: %w", d.kind, d.code, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO metadata_documents (kind, position, code, document) VALUES (?, ?, ?, ?)",
			d.kind, i, d.code, string(body)); err != nil {
			return fmt.Errorf("inserting %s %s: %w", d.kind, d.code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	return nil
}

// Load returns the last saved set. It lets the store serve as a
// driven.MetadataSource when no metadata directory is configured.
func (s *MetadataStore) Load(ctx context.Context) (*domain.MetadataSet, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT kind, code, document FROM metadata_documents ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying metadata: %w", err)
	}
	defer rows.Close()

	set := &domain.MetadataSet{}
	found := false
	for rows.Next() {
		var kind, code, body string
		if err := rows.Scan(&kind, &code, &body); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		found = true
		if err := decodeMetadataDoc(set, kind, []byte(body)); err != nil {
			return nil, fmt.Errorf("decoding %s %s: %w", kind, code, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metadata: %w", err)
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	return set, nil
}

func decodeMetadataDoc(set *domain.MetadataSet, kind string, body []byte) error {
	switch kind {
	case docPillar:
		var v domain.PillarDetail
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.Pillars = append(set.Pillars, v)
	case docCategory:
		var v domain.CategoryDetail
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.Categories = append(set.Categories, v)
	case docIndicator:
		var v domain.IndicatorDetail
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.Indicators = append(set.Indicators, v)
	case docIntermediate:
		var v domain.IntermediateDetail
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.Intermediates = append(set.Intermediates, v)
	case docDataset:
		var v domain.DatasetDetail
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.Datasets = append(set.Datasets, v)
	case docCountryGroup:
		var v domain.CountryGroup
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		set.CountryGroups = append(set.CountryGroups, v)
	default:
		return fmt.Errorf("unknown metadata kind %q", kind)
	}
	return nil
}

// SaveYearRange records a dataset's span.
func (s *MetadataStore) SaveYearRange(ctx context.Context, code string, r domain.YearRange) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO dataset_year_ranges (dataset_code, min_year, max_year)
		VALUES (?, ?, ?)
		ON CONFLICT(dataset_code) DO UPDATE SET
			min_year = excluded.min_year,
			max_year = excluded.max_year
	`, code, r.MinYear, r.MaxYear)
	if err != nil {
		return fmt.Errorf("saving year range of %s: %w", code, err)
	}
	return nil
}

// YearRanges returns every recorded span.
func (s *MetadataStore) YearRanges(ctx context.Context) (map[string]domain.YearRange, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT dataset_code, min_year, max_year FROM dataset_year_ranges")
	if err != nil {
		return nil, fmt.Errorf("querying year ranges: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.YearRange)
	for rows.Next() {
		var code string
		var r domain.YearRange
		if err := rows.Scan(&code, &r.MinYear, &r.MaxYear); err != nil {
			return nil, fmt.Errorf("scanning year range: %w", err)
		}
		out[code] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating year ranges: %w", err)
	}
	return out, nil
}
