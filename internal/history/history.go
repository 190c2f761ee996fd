// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package history persists fetched measurements for trend queries.

# Architecture

The store is optional: the daemon runs fully without a database, and the
poller treats a failed insert as a logged, non-fatal event. When enabled it
implements the poller's Recorder contract on a [pgxpool.Pool].

# Error Mapping

Storage-specific errors stay inside this package; callers receive wrapped
errors with a stable "history_" prefix.
*/
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ra486/hacs-renpho-health/internal/renpho"
	"github.com/ra486/hacs-renpho-health/pkg/uuid"
)

// Entry is one persisted measurement row.
type Entry struct {
	ID         string              `json:"id"`
	RecordedAt time.Time           `json:"recorded_at"`
	WeightKg   *float64            `json:"weight_kg"`
	Reading    *renpho.Measurement `json:"reading"`
}

// Store persists measurement entries in the history.measurement table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed measurement history store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts one measurement row. The full derived record is stored as
// jsonb so new vendor fields survive without schema changes.
func (store *Store) Record(ctx context.Context, measurement *renpho.Measurement) error {
	if measurement == nil {
		return nil
	}

	reading, err := json.Marshal(measurement)
	if err != nil {
		return fmt.Errorf("history_encode_reading_failed: %w", err)
	}

	const query = `
		INSERT INTO history.measurement (id, recordedat, weightkg, reading)
		VALUES ($1, $2, $3, $4)`

	_, err = store.pool.Exec(ctx, query,
		uuid.New(),
		time.Now(),
		measurement.WeightKg,
		reading,
	)
	if err != nil {
		return fmt.Errorf("history_record_failed: %w", err)
	}

	return nil
}

/*
List returns measurement entries ordered newest first, plus the total row
count for pagination.

Parameters:
  - ctx: Context for the database operation.
  - limit: Maximum number of rows to return.
  - offset: Number of rows to skip.

Returns:
  - []*Entry: The page of entries.
  - int: Total count across all pages.
  - error: Database or decode errors.
*/
func (store *Store) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	const countQuery = `SELECT COUNT(*) FROM history.measurement`

	var total int
	if err := store.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history_count_failed: %w", err)
	}

	const query = `
		SELECT id, recordedat, weightkg, reading
		FROM history.measurement
		ORDER BY recordedat DESC
		LIMIT $1 OFFSET $2`

	rows, err := store.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("history_list_failed: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, limit)
	for rows.Next() {
		entry := &Entry{}
		var reading []byte
		if err := rows.Scan(&entry.ID, &entry.RecordedAt, &entry.WeightKg, &reading); err != nil {
			return nil, 0, fmt.Errorf("history_scan_failed: %w", err)
		}
		if len(reading) > 0 {
			if err := json.Unmarshal(reading, &entry.Reading); err != nil {
				return nil, 0, fmt.Errorf("history_decode_reading_failed: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("history_rows_failed: %w", err)
	}

	return entries, total, nil
}
