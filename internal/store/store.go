// Package store persists imported identifier records in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openscholar/doisync/internal/datacite"
)

// ErrRecordNotFound is returned when a record lookup matches nothing
var ErrRecordNotFound = errors.New("identifier record not found in store")

// Store is a Postgres-backed mirror of imported identifier records. Records
// are keyed by identifier and overwritten on re-import.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on top of an existing connection pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const upsertQuery = `
INSERT INTO identifier_records (doi, prefix, url, state, attributes, imported_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (doi) DO UPDATE SET
    prefix = EXCLUDED.prefix,
    url = EXCLUDED.url,
    state = EXCLUDED.state,
    attributes = EXCLUDED.attributes,
    imported_at = EXCLUDED.imported_at`

// UpsertRecord writes one record, replacing any previous import of the same
// identifier.
func (s *Store) UpsertRecord(ctx context.Context, record datacite.Record) error {
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes for %s: %w", record.ID, err)
	}

	_, err = s.pool.Exec(ctx, upsertQuery,
		record.ID, record.Prefix(), record.URL(), record.State(), attrs)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.ID, err)
	}
	return nil
}

// UpsertBatch writes a batch of records in one round trip
func (s *Store) UpsertBatch(ctx context.Context, records []datacite.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		attrs, err := json.Marshal(record.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode attributes for %s: %w", record.ID, err)
		}
		batch.Queue(upsertQuery, record.ID, record.Prefix(), record.URL(), record.State(), attrs)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert record batch: %w", err)
		}
	}
	return nil
}

// GetRecord loads one record by identifier
func (s *Store) GetRecord(ctx context.Context, identifier string) (*datacite.Record, error) {
	var (
		record datacite.Record
		attrs  []byte
	)

	err := s.pool.QueryRow(ctx,
		`SELECT doi, attributes FROM identifier_records WHERE doi = $1`,
		identifier,
	).Scan(&record.ID, &attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", identifier, err)
	}

	if err := json.Unmarshal(attrs, &record.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes for %s: %w", identifier, err)
	}
	return &record, nil
}

// Count returns the number of stored records
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identifier_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CountByPrefix returns the stored record count per prefix
func (s *Store) CountByPrefix(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prefix, COUNT(*) FROM identifier_records GROUP BY prefix`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records by prefix: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			prefix string
			count  int64
		)
		if err := rows.Scan(&prefix, &count); err != nil {
			return nil, fmt.Errorf("failed to scan prefix count: %w", err)
		}
		counts[prefix] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prefix counts: %w", err)
	}
	return counts, nil
}
