package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// observationStore implements driven.ObservationStore. Each classifier is
// a partition of clean_observations keyed by (kind, code).
type observationStore struct {
	store *Store
}

var _ driven.ObservationStore = (*observationStore)(nil)

// Replace swaps a classifier's partition in one transaction. Invalid input
// leaves the previous partition untouched.
func (s *observationStore) Replace(ctx context.Context, c domain.Classifier, obs []domain.Observation) error {
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return errkind.Integrity.Wrap(err)
		}
		if got, _ := o.Classifier(); got != c {
			return errkind.Integrity.Wrap(fmt.Errorf("%w: %s written to %s", domain.ErrClassifier, got, c))
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM clean_observations WHERE kind = ? AND code = ?", string(c.Kind), c.Code); err != nil {
		return fmt.Errorf("clearing %s: %w", c, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clean_observations (
			kind, code, country_code, year, value, unit, score, description, source_org, source_query
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, code, country_code, year) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing observation insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		var score sql.NullFloat64
		if o.Score != nil {
			score = sql.NullFloat64{Float64: *o.Score, Valid: true}
		}
		var org, query string
		if o.Source != nil {
			org, query = o.Source.OrganizationCode, o.Source.QueryCode
		}
		res, err := stmt.ExecContext(ctx, string(c.Kind), c.Code, o.CountryCode, o.Year,
			o.Value, o.Unit, score, o.Description, nullString(org), nullString(query))
		if err != nil {
			return fmt.Errorf("inserting observation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errkind.Integrity.New("duplicate %s/%d in %s", o.CountryCode, o.Year, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", c, err)
	}
	return nil
}

// Find returns matching observations ordered by (CountryCode, Year)
// unless filters opt out.
func (s *observationStore) Find(ctx context.Context, f domain.QueryFilters) ([]domain.Observation, error) {
	var w where
	w.countryYear(f)
	var alts []string
	for _, cf := range []struct {
		kind  domain.ClassifierKind
		codes []string
	}{
		{domain.KindDataset, f.DatasetCodes},
		{domain.KindIntermediate, f.IntermediateCodes},
		{domain.KindIndicator, f.IndicatorCodes},
	} {
		if len(cf.codes) == 0 {
			continue
		}
		alts = append(alts, "(kind = ? AND code IN ("+placeholders(len(cf.codes))+"))")
		w.args = append(w.args, string(cf.kind))
		w.args = appendStrings(w.args, cf.codes)
	}
	if len(alts) > 0 {
		w.clauses = append(w.clauses, "("+strings.Join(alts, " OR ")+")")
	}

	query := `SELECT kind, code, country_code, year, value, unit, score, description, source_org, source_query
		FROM clean_observations` + w.String()
	if !f.Unordered {
		query += " ORDER BY country_code, year, kind, code"
	}

	rows, err := s.store.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var o domain.Observation
		var kind, code string
		var score sql.NullFloat64
		var org, src sql.NullString
		if err := rows.Scan(&kind, &code, &o.CountryCode, &o.Year, &o.Value, &o.Unit,
			&score, &o.Description, &org, &src); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		o = o.WithClassifier(domain.Classifier{Kind: domain.ClassifierKind(kind), Code: code})
		if score.Valid {
			o.Score = domain.Float(score.Float64)
		}
		if org.Valid || src.Valid {
			o.Source = &domain.SourceRef{OrganizationCode: org.String, QueryCode: src.String}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observations: %w", err)
	}
	return out, nil
}

// Delete removes a classifier's partition.
func (s *observationStore) Delete(ctx context.Context, c domain.Classifier) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM clean_observations WHERE kind = ? AND code = ?", string(c.Kind), c.Code)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", c, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// ReplaceIncomplete swaps an indicator's incomplete partition.
func (s *observationStore) ReplaceIncomplete(ctx context.Context, indicatorCode string, obs []domain.IncompleteObservation) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM incomplete_observations WHERE indicator_code = ?", indicatorCode); err != nil {
		return fmt.Errorf("clearing incomplete %s: %w", indicatorCode, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO incomplete_observations (
			indicator_code, country_code, year, intermediates, missing, reason
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing incomplete insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		intermediates, err := json.Marshal(o.Intermediates)
		if err != nil {
			return fmt.Errorf("marshalling intermediates: %w", err)
		}
		missing, err := json.Marshal(o.Missing)
		if err != nil {
			return fmt.Errorf("marshalling missing: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, indicatorCode, o.CountryCode, o.Year,
			string(intermediates), string(missing), string(o.Reason)); err != nil {
			return fmt.Errorf("inserting incomplete observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing incomplete %s: %w", indicatorCode, err)
	}
	return nil
}

// FindIncomplete returns matching incomplete observations. Country and
// year filters run in SQL; classifier filters need the decoded
// intermediates and run on each row.
func (s *observationStore) FindIncomplete(ctx context.Context, f domain.QueryFilters) ([]domain.IncompleteObservation, error) {
	var w where
	w.countryYear(f)
	query := `SELECT indicator_code, country_code, year, intermediates, missing, reason
		FROM incomplete_observations` + w.String()
	if !f.Unordered {
		query += " ORDER BY country_code, year, indicator_code"
	}

	rows, err := s.store.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying incomplete observations: %w", err)
	}
	defer rows.Close()

	var out []domain.IncompleteObservation
	for rows.Next() {
		var o domain.IncompleteObservation
		var intermediates, missing, reason string
		if err := rows.Scan(&o.IndicatorCode, &o.CountryCode, &o.Year,
			&intermediates, &missing, &reason); err != nil {
			return nil, fmt.Errorf("scanning incomplete observation: %w", err)
		}
		if err := json.Unmarshal([]byte(intermediates), &o.Intermediates); err != nil {
			return nil, fmt.Errorf("unmarshalling intermediates: %w", err)
		}
		if err := json.Unmarshal([]byte(missing), &o.Missing); err != nil {
			return nil, fmt.Errorf("unmarshalling missing: %w", err)
		}
		o.Reason = domain.IncompleteReason(reason)
		if f.MatchIncomplete(o) {
			out = append(out, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating incomplete observations: %w", err)
	}
	return out, nil
}

// DeleteIncomplete removes an indicator's incomplete partition.
func (s *observationStore) DeleteIncomplete(ctx context.Context, indicatorCode string) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM incomplete_observations WHERE indicator_code = ?", indicatorCode)
	if err != nil {
		return 0, fmt.Errorf("deleting incomplete %s: %w", indicatorCode, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// where accumulates AND-ed clauses and their arguments. Values are only
// ever bound as parameters.
type where struct {
	clauses []string
	args    []any
}

func (w *where) countryYear(f domain.QueryFilters) {
	if len(f.CountryCodes) > 0 {
		w.clauses = append(w.clauses, "country_code IN ("+placeholders(len(f.CountryCodes))+")")
		w.args = appendStrings(w.args, f.CountryCodes)
	}
	if len(f.Years) > 0 {
		w.clauses = append(w.clauses, "year IN ("+placeholders(len(f.Years))+")")
		for _, y := range f.Years {
			w.args = append(w.args, y)
		}
	}
	if f.YearRangeStart != 0 {
		w.clauses = append(w.clauses, "year >= ?")
		w.args = append(w.args, f.YearRangeStart)
	}
	if f.YearRangeEnd != 0 {
		w.clauses = append(w.clauses, "year <= ?")
		w.args = append(w.args, f.YearRangeEnd)
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}
