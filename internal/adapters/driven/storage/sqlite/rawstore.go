package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// rawStore implements driven.RawStore.
type rawStore struct {
	store *Store
}

var _ driven.RawStore = (*rawStore)(nil)

// Insert appends docs in one transaction. A document whose dedup key is
// already stored is skipped.
func (s *rawStore) Insert(ctx context.Context, docs []domain.RawDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO raw_documents (
			id, organization_code, query_code, country_code, year, payload_hash,
			collected_at, collected_by, intermediate_code, metadata, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing raw insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.PayloadHash == "" {
			d.PayloadHash = domain.HashPayload(d.Raw)
		}
		var metadata sql.NullString
		if len(d.Source.Metadata) > 0 {
			metadata = sql.NullString{String: string(d.Source.Metadata), Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			d.ID, d.Source.OrganizationCode, d.Source.QueryCode, d.CountryCode, d.Year, d.PayloadHash,
			d.Source.CollectedAt.UTC().Format(time.RFC3339Nano), d.Source.CollectedBy,
			d.Source.IntermediateCode, metadata, string(d.Raw))
		if err != nil {
			return 0, fmt.Errorf("inserting raw document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reading rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing raw documents: %w", err)
	}
	return inserted, nil
}

// Find returns a source query's documents in insertion order.
func (s *rawStore) Find(ctx context.Context, org, query string) ([]domain.RawDocument, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_code, query_code, country_code, year, payload_hash,
		       collected_at, collected_by, intermediate_code, metadata, raw
		FROM raw_documents
		WHERE organization_code = ? AND query_code = ?
		ORDER BY seq
	`, org, query)
	if err != nil {
		return nil, fmt.Errorf("querying raw documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.RawDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		var d domain.RawDocument
		var collectedAt, raw string
		var metadata sql.NullString
		if err := rows.Scan(&d.ID, &d.Source.OrganizationCode, &d.Source.QueryCode,
			&d.CountryCode, &d.Year, &d.PayloadHash, &collectedAt, &d.Source.CollectedBy,
			&d.Source.IntermediateCode, &metadata, &raw); err != nil {
			return nil, fmt.Errorf("scanning raw document: %w", err)
		}
		if d.Source.CollectedAt, err = time.Parse(time.RFC3339Nano, collectedAt); err != nil {
			return nil, fmt.Errorf("parsing collected_at of %s: %w", d.ID, err)
		}
		if metadata.Valid {
			d.Source.Metadata = []byte(metadata.String)
		}
		d.Raw = []byte(raw)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating raw documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents of a source query.
func (s *rawStore) Count(ctx context.Context, org, query string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM raw_documents WHERE organization_code = ? AND query_code = ?",
		org, query).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting raw documents: %w", err)
	}
	return n, nil
}

// Delete removes a source query's documents.
func (s *rawStore) Delete(ctx context.Context, org, query string) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM raw_documents WHERE organization_code = ? AND query_code = ?", org, query)
	if err != nil {
		return 0, fmt.Errorf("deleting raw documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}
