package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntryRecordRepository aggregates the ride entry ledger. The engine never
// replays individual records; it only reads the net flow over a window.
type EntryRecordRepository struct {
	pool *pgxpool.Pool
}

func NewEntryRecordRepository(pool *pgxpool.Pool) *EntryRecordRepository {
	return &EntryRecordRepository{pool: pool}
}

// NetDelta counts entries and exits for a ride in the half-open window
// (from, to]. Window edges follow the reconciliation convention: a record
// on the previous window's end is not counted twice.
func (r *EntryRecordRepository) NetDelta(ctx context.Context, rideID int64, from, to time.Time) (entries, exits int, err error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE entry_time > $2 AND entry_time <= $3),
	COUNT(*) FILTER (WHERE exit_time > $2 AND exit_time <= $3)
FROM ride_entry_records
WHERE ride_id = $1`

	if err := r.queryRow(ctx, query, rideID, from, to).Scan(&entries, &exits); err != nil {
		return 0, 0, fmt.Errorf("net delta: %w", err)
	}
	return entries, exits, nil
}

func (r *EntryRecordRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
