package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tjusucks/parkops/internal/cache"
	"github.com/tjusucks/parkops/internal/clock"
	"github.com/tjusucks/parkops/internal/domain"
)

// RideDirectory is the slice of the ride repository the stats engine reads.
type RideDirectory interface {
	GetByID(ctx context.Context, rideID int64) (domain.AmusementRide, error)
}

// SnapshotReader loads durable snapshots for the cache fallback chain.
type SnapshotReader interface {
	GetLatest(ctx context.Context, rideID int64, from, to time.Time) (*domain.TrafficStat, error)
}

// RosterProvider lists the rides currently eligible for statistics.
type RosterProvider interface {
	ActiveRideIDs(ctx context.Context) ([]int64, error)
}

const (
	defaultSnapshotTTL      = 30 * time.Minute
	defaultSnapshotLookback = 15 * time.Minute
)

// StatsService serves real-time traffic snapshots and applies event-driven
// occupancy deltas. Reads follow the chain cache -> latest durable snapshot
// -> computed zero-state, so an existing ride always yields a snapshot.
// Entry/exit updates touch only the cache; the reconciler re-establishes
// durable consistency on its next tick.
type StatsService struct {
	rides  RideDirectory
	stats  SnapshotReader
	roster RosterProvider
	cache  cache.Store
	clock  clock.Clock
	logger *slog.Logger

	cacheTTL time.Duration
	lookback time.Duration
}

func NewStatsService(
	rides RideDirectory,
	stats SnapshotReader,
	roster RosterProvider,
	store cache.Store,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...StatsServiceOption,
) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &StatsService{
		rides:    rides,
		stats:    stats,
		roster:   roster,
		cache:    store,
		clock:    clk,
		logger:   logger,
		cacheTTL: defaultSnapshotTTL,
		lookback: defaultSnapshotLookback,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type StatsServiceOption func(*StatsService)

// WithSnapshotTTL overrides the cache TTL for snapshots.
func WithSnapshotTTL(d time.Duration) StatsServiceOption {
	return func(s *StatsService) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithSnapshotLookback overrides the durable-store lookback window used on
// cache misses.
func WithSnapshotLookback(d time.Duration) StatsServiceOption {
	return func(s *StatsService) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// GetRealTimeStat returns the latest known snapshot for one ride. It fails
// only when the ride itself does not exist.
func (s *StatsService) GetRealTimeStat(ctx context.Context, rideID int64) (domain.TrafficStat, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return domain.TrafficStat{}, err
	}
	return s.loadSnapshot(ctx, ride)
}

// GetAllRealTimeStats returns snapshots for every operating ride. A single
// ride's failure is logged and skipped, never aborting the batch, and an
// unavailable roster degrades to an empty list rather than an error.
func (s *StatsService) GetAllRealTimeStats(ctx context.Context) ([]domain.TrafficStat, error) {
	ids, err := s.roster.ActiveRideIDs(ctx)
	if err != nil {
		s.logger.Warn("ride roster unavailable, serving empty stats", "error", err)
		return []domain.TrafficStat{}, nil
	}

	stats := make([]domain.TrafficStat, 0, len(ids))
	for _, id := range ids {
		stat, err := s.GetRealTimeStat(ctx, id)
		if err != nil {
			s.logger.Warn("skipping ride in real-time stats", "ride_id", id, "error", err)
			continue
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// OnRideEntry bumps the cached occupancy for a ride by one. Unknown rides
// are a no-op; rides not currently operating reject entries.
func (s *StatsService) OnRideEntry(ctx context.Context, rideID int64) error {
	return s.applyDelta(ctx, rideID, 1)
}

// OnRideExit decrements the cached occupancy for a ride, clamped at zero.
// Unknown rides are a no-op.
func (s *StatsService) OnRideExit(ctx context.Context, rideID int64) error {
	return s.applyDelta(ctx, rideID, -1)
}

func (s *StatsService) applyDelta(ctx context.Context, rideID int64, delta int) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, domain.ErrRideNotFound) {
			return nil
		}
		return err
	}
	if err := ride.Validate(); err != nil {
		return err
	}
	// Entries require an operating ride; exits always pass so occupancy
	// can drain after a ride closes mid-day.
	if delta > 0 && ride.Status != domain.RideStatusOperating {
		return domain.ErrRideNotOperating
	}

	stat, err := s.loadSnapshot(ctx, ride)
	if err != nil {
		return err
	}

	stat.SetVisitorCount(stat.VisitorCount+delta, ride)
	stat.UpdatedAt = s.clock.Now()
	return writeSnapshot(ctx, s.cache, stat, s.cacheTTL)
}

// loadSnapshot walks the fallback chain for an already-validated ride. It
// never returns "not found": when neither cache nor durable store has a
// snapshot it synthesizes and caches a zero-state one.
func (s *StatsService) loadSnapshot(ctx context.Context, ride domain.AmusementRide) (domain.TrafficStat, error) {
	key := cache.StatKey(ride.ID)

	raw, err := s.cache.GetString(ctx, key)
	if err == nil {
		var stat domain.TrafficStat
		if uerr := json.Unmarshal([]byte(raw), &stat); uerr == nil {
			return stat, nil
		}
		s.logger.Warn("discarding malformed cached snapshot", "ride_id", ride.ID)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("snapshot cache read failed", "ride_id", ride.ID, "error", err)
	}

	now := s.clock.Now()
	latest, err := s.stats.GetLatest(ctx, ride.ID, now.Add(-s.lookback), now)
	if err != nil {
		s.logger.Warn("durable snapshot lookup failed", "ride_id", ride.ID, "error", err)
	}
	if latest != nil {
		s.cacheSnapshot(ctx, *latest)
		return *latest, nil
	}

	if err := ride.Validate(); err != nil {
		return domain.TrafficStat{}, err
	}
	stat := domain.NewTrafficStat(ride, now, 0, now)
	s.cacheSnapshot(ctx, stat)
	return stat, nil
}

// cacheSnapshot writes back best-effort; a cache failure never fails a read.
func (s *StatsService) cacheSnapshot(ctx context.Context, stat domain.TrafficStat) {
	if err := writeSnapshot(ctx, s.cache, stat, s.cacheTTL); err != nil {
		s.logger.Warn("snapshot cache write failed", "ride_id", stat.RideID, "error", err)
	}
}

// writeSnapshot serializes a snapshot into the distributed cache. Every
// value written this way has passed through the metric computation.
func writeSnapshot(ctx context.Context, store cache.Store, stat domain.TrafficStat, ttl time.Duration) error {
	payload, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return store.SetString(ctx, cache.StatKey(stat.RideID), string(payload), ttl)
}
