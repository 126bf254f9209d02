package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tjusucks/parkops/internal/cache"
	"github.com/tjusucks/parkops/internal/clock"
	"github.com/tjusucks/parkops/internal/domain"
)

// EntryLedger aggregates occupancy events over a reconciliation window.
type EntryLedger interface {
	NetDelta(ctx context.Context, rideID int64, from, to time.Time) (entries, exits int, err error)
}

// SnapshotStore is the durable stat surface the reconciler writes through.
type SnapshotStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetByID(ctx context.Context, rideID int64, recordTime time.Time) (*domain.TrafficStat, error)
	GetLastBefore(ctx context.Context, rideID int64, before time.Time) (*domain.TrafficStat, error)
	Insert(ctx context.Context, stat domain.TrafficStat) error
	Update(ctx context.Context, stat domain.TrafficStat) error
}

// PassObserver counts per-ride reconciliation outcomes.
type PassObserver interface {
	RideProcessed()
	RideFailed()
}

// PassSummary reports one reconciliation pass.
type PassSummary struct {
	Total     int
	Processed int
	Failed    int
}

const (
	defaultReconcileConcurrency = 5
	defaultRideTimeout          = 10 * time.Second
)

// Reconciler recomputes authoritative snapshots from the entry ledger,
// upserts them durably and refreshes the cache. Both the scheduler and the
// manual trigger endpoints run through it, so there is a single code path
// for the per-ride procedure.
type Reconciler struct {
	roster RosterProvider
	rides  RideDirectory
	ledger EntryLedger
	stats  SnapshotStore
	cache  cache.Store
	clock  clock.Clock
	logger *slog.Logger
	obs    PassObserver

	limit       int
	lookback    time.Duration
	cacheTTL    time.Duration
	rideTimeout time.Duration
}

func NewReconciler(
	roster RosterProvider,
	rides RideDirectory,
	ledger EntryLedger,
	stats SnapshotStore,
	store cache.Store,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		roster:      roster,
		rides:       rides,
		ledger:      ledger,
		stats:       stats,
		cache:       store,
		clock:       clk,
		logger:      logger,
		limit:       defaultReconcileConcurrency,
		lookback:    defaultSnapshotLookback,
		cacheTTL:    defaultSnapshotTTL,
		rideTimeout: defaultRideTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcilerOption func(*Reconciler)

// WithConcurrency caps the per-pass fan-out across rides. The bound
// protects the persistence layer from a thundering herd.
func WithConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithRideTimeout bounds the durable-store and ledger work for one ride.
// Zero disables the timeout.
func WithRideTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.rideTimeout = d
	}
}

// WithPassObserver wires per-ride outcome metrics.
func WithPassObserver(obs PassObserver) ReconcilerOption {
	return func(r *Reconciler) {
		r.obs = obs
	}
}

// RunAll reconciles every ride in the active roster with bounded
// concurrency. A single ride's failure is logged and counted without
// cancelling sibling work; only a roster-level failure is returned.
func (r *Reconciler) RunAll(ctx context.Context, recordTime time.Time) (PassSummary, error) {
	ids, err := r.roster.ActiveRideIDs(ctx)
	if err != nil {
		return PassSummary{}, err
	}
	if len(ids) == 0 {
		r.logger.Info("no operating rides, skipping reconciliation pass")
		return PassSummary{}, nil
	}

	var processed, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(r.limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.RunOne(ctx, id, recordTime); err != nil {
				r.logger.Warn("ride reconciliation failed", "ride_id", id, "error", err)
				failed.Add(1)
				if r.obs != nil {
					r.obs.RideFailed()
				}
				return nil
			}
			processed.Add(1)
			if r.obs != nil {
				r.obs.RideProcessed()
			}
			return nil
		})
	}
	_ = g.Wait()

	return PassSummary{
		Total:     len(ids),
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}, nil
}

// RunOne reconciles a single ride at the quantized record time: it reads
// the net entry/exit delta since the last durable snapshot, recomputes the
// derived metrics and upserts the row in one transaction, then refreshes
// the cache. On any failure the transaction rolls back and the last good
// cached value is left untouched.
func (r *Reconciler) RunOne(ctx context.Context, rideID int64, recordTime time.Time) error {
	if r.rideTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.rideTimeout)
		defer cancel()
	}

	ride, err := r.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if err := ride.Validate(); err != nil {
		return err
	}

	recordTime = domain.QuantizeRecordTime(recordTime)
	now := r.clock.Now()

	var result domain.TrafficStat
	err = r.stats.WithTx(ctx, func(txCtx context.Context) error {
		latest, err := r.stats.GetLastBefore(txCtx, rideID, now)
		if err != nil {
			return err
		}

		// The last snapshot's count folded in every ledger event up to
		// its UpdatedAt, so the next window starts there. Snapshots can
		// fall arbitrarily far behind (a long outage, a closed ride);
		// the lookback bounds the window only when no snapshot exists.
		windowStart := now.Add(-r.lookback)
		lastCount := 0
		if latest != nil {
			windowStart = latest.UpdatedAt
			lastCount = latest.VisitorCount
		}

		entries, exits, err := r.ledger.NetDelta(txCtx, rideID, windowStart, now)
		if err != nil {
			return err
		}
		newCount := lastCount + entries - exits

		existing, err := r.stats.GetByID(txCtx, rideID, recordTime)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.SetVisitorCount(newCount, ride)
			existing.UpdatedAt = now
			if err := r.stats.Update(txCtx, *existing); err != nil {
				return err
			}
			result = *existing
			return nil
		}

		stat := domain.NewTrafficStat(ride, recordTime, newCount, now)
		if err := r.stats.Insert(txCtx, stat); err != nil {
			if errors.Is(err, domain.ErrStatExists) {
				// Lost an insert race; converge by updating the winner's row.
				return r.updateExisting(txCtx, ride, recordTime, newCount, now, &result)
			}
			return err
		}
		result = stat
		return nil
	})
	if err != nil {
		return err
	}

	// Refresh the cache only after the durable write committed. A cache
	// failure here is logged, not returned: the durable store is already
	// consistent and the stale cached value expires on its own.
	if err := writeSnapshot(ctx, r.cache, result, r.cacheTTL); err != nil {
		r.logger.Warn("snapshot cache refresh failed", "ride_id", rideID, "error", err)
	}
	return nil
}

func (r *Reconciler) updateExisting(ctx context.Context, ride domain.AmusementRide, recordTime time.Time, count int, now time.Time, result *domain.TrafficStat) error {
	current, err := r.stats.GetByID(ctx, ride.ID, recordTime)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrStatNotFound
	}
	current.SetVisitorCount(count, ride)
	current.UpdatedAt = now
	if err := r.stats.Update(ctx, *current); err != nil {
		return err
	}
	*result = *current
	return nil
}
