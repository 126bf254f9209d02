package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tjusucks/parkops/internal/domain"
)

// RideRepository reads the amusement ride directory. The stats engine only
// needs lookups and the operating roster; ride CRUD lives elsewhere.
type RideRepository struct {
	pool *pgxpool.Pool
}

func NewRideRepository(pool *pgxpool.Pool) *RideRepository {
	return &RideRepository{pool: pool}
}

func (r *RideRepository) GetByID(ctx context.Context, rideID int64) (domain.AmusementRide, error) {
	const query = `
SELECT ride_id, ride_name, location, ride_status, capacity, cycle_seconds
FROM amusement_rides
WHERE ride_id = $1`

	var ride domain.AmusementRide
	err := r.queryRow(ctx, query, rideID).Scan(
		&ride.ID, &ride.Name, &ride.Location, &ride.Status, &ride.Capacity, &ride.CycleSeconds,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.AmusementRide{}, domain.ErrRideNotFound
		}
		return domain.AmusementRide{}, fmt.Errorf("get ride: %w", err)
	}
	return ride, nil
}

func (r *RideRepository) ListOperating(ctx context.Context) ([]domain.AmusementRide, error) {
	const query = `
SELECT ride_id, ride_name, location, ride_status, capacity, cycle_seconds
FROM amusement_rides
WHERE ride_status = $1
ORDER BY ride_id`

	rows, err := r.query(ctx, query, domain.RideStatusOperating)
	if err != nil {
		return nil, fmt.Errorf("list operating rides: %w", err)
	}
	defer rows.Close()

	var rides []domain.AmusementRide
	for rows.Next() {
		var ride domain.AmusementRide
		if err := rows.Scan(
			&ride.ID, &ride.Name, &ride.Location, &ride.Status, &ride.Capacity, &ride.CycleSeconds,
		); err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operating rides: %w", err)
	}
	return rides, nil
}

func (r *RideRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *RideRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
