package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tjusucks/parkops/internal/domain"
)

// TrafficStatRepository is the durable store for traffic stat snapshots,
// keyed by (ride_id, record_time).
type TrafficStatRepository struct {
	pool *pgxpool.Pool
}

func NewTrafficStatRepository(pool *pgxpool.Pool) *TrafficStatRepository {
	return &TrafficStatRepository{pool: pool}
}

// WithTx runs fn inside a transaction; nested calls join the outer one.
func (r *TrafficStatRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *TrafficStatRepository) GetByID(ctx context.Context, rideID int64, recordTime time.Time) (*domain.TrafficStat, error) {
	const query = `
SELECT ride_id, record_time, visitor_count, queue_length, waiting_time, is_crowded, created_at, updated_at
FROM ride_traffic_stats
WHERE ride_id = $1 AND record_time = $2`

	stat, err := scanStat(r.queryRow(ctx, query, rideID, recordTime))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get stat: %w", err)
	}
	return stat, nil
}

// GetLatest returns the most recent snapshot with record_time in [from, to],
// or nil when none exists in the window.
func (r *TrafficStatRepository) GetLatest(ctx context.Context, rideID int64, from, to time.Time) (*domain.TrafficStat, error) {
	const query = `
SELECT ride_id, record_time, visitor_count, queue_length, waiting_time, is_crowded, created_at, updated_at
FROM ride_traffic_stats
WHERE ride_id = $1 AND record_time >= $2 AND record_time <= $3
ORDER BY record_time DESC
LIMIT 1`

	stat, err := scanStat(r.queryRow(ctx, query, rideID, from, to))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest stat: %w", err)
	}
	return stat, nil
}

// GetLastBefore returns the newest snapshot with record_time at or before
// the given instant, regardless of age, or nil when the ride has none.
func (r *TrafficStatRepository) GetLastBefore(ctx context.Context, rideID int64, before time.Time) (*domain.TrafficStat, error) {
	const query = `
SELECT ride_id, record_time, visitor_count, queue_length, waiting_time, is_crowded, created_at, updated_at
FROM ride_traffic_stats
WHERE ride_id = $1 AND record_time <= $2
ORDER BY record_time DESC
LIMIT 1`

	stat, err := scanStat(r.queryRow(ctx, query, rideID, before))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get last stat before: %w", err)
	}
	return stat, nil
}

func (r *TrafficStatRepository) Insert(ctx context.Context, stat domain.TrafficStat) error {
	const stmt = `
INSERT INTO ride_traffic_stats (ride_id, record_time, visitor_count, queue_length, waiting_time, is_crowded, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		stat.RideID,
		stat.RecordTime,
		stat.VisitorCount,
		stat.QueueLength,
		stat.WaitingTime,
		stat.IsCrowded,
		stat.CreatedAt,
		stat.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStatExists
		}
		return fmt.Errorf("insert stat: %w", err)
	}
	return nil
}

func (r *TrafficStatRepository) Update(ctx context.Context, stat domain.TrafficStat) error {
	const stmt = `
UPDATE ride_traffic_stats
SET visitor_count = $3, queue_length = $4, waiting_time = $5, is_crowded = $6, updated_at = $7
WHERE ride_id = $1 AND record_time = $2`

	tag, err := r.exec(ctx, stmt,
		stat.RideID,
		stat.RecordTime,
		stat.VisitorCount,
		stat.QueueLength,
		stat.WaitingTime,
		stat.IsCrowded,
		stat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update stat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatNotFound
	}
	return nil
}

// FindOlderThan returns up to limit snapshots with record_time <= cutoff,
// oldest first, for the archival job.
func (r *TrafficStatRepository) FindOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.TrafficStat, error) {
	const query = `
SELECT ride_id, record_time, visitor_count, queue_length, waiting_time, is_crowded, created_at, updated_at
FROM ride_traffic_stats
WHERE record_time <= $1
ORDER BY record_time, ride_id
LIMIT $2`

	rows, err := r.query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find stats older than: %w", err)
	}
	defer rows.Close()

	var stats []domain.TrafficStat
	for rows.Next() {
		var s domain.TrafficStat
		if err := rows.Scan(
			&s.RideID, &s.RecordTime, &s.VisitorCount, &s.QueueLength,
			&s.WaitingTime, &s.IsCrowded, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find stats older than: %w", err)
	}
	return stats, nil
}

func (r *TrafficStatRepository) Delete(ctx context.Context, rideID int64, recordTime time.Time) error {
	const stmt = `DELETE FROM ride_traffic_stats WHERE ride_id = $1 AND record_time = $2`
	if _, err := r.exec(ctx, stmt, rideID, recordTime); err != nil {
		return fmt.Errorf("delete stat: %w", err)
	}
	return nil
}

func scanStat(row pgx.Row) (*domain.TrafficStat, error) {
	var s domain.TrafficStat
	err := row.Scan(
		&s.RideID, &s.RecordTime, &s.VisitorCount, &s.QueueLength,
		&s.WaitingTime, &s.IsCrowded, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TrafficStatRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *TrafficStatRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *TrafficStatRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
