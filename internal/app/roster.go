package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tjusucks/parkops/internal/clock"
	"github.com/tjusucks/parkops/internal/domain"
)

// RideLister queries the ride directory for the operating roster.
type RideLister interface {
	ListOperating(ctx context.Context) ([]domain.AmusementRide, error)
}

const defaultRosterTTL = time.Hour

// RosterCache answers "which rides are eligible for statistics" from an
// in-process list refreshed at most once per TTL. Staleness up to one
// refresh cycle is an accepted tradeoff. When a refresh fails the previous
// list keeps being served; an error surfaces only if the cache has never
// been populated.
type RosterCache struct {
	rides  RideLister
	clock  clock.Clock
	logger *slog.Logger
	ttl    time.Duration

	mu          sync.Mutex
	ids         []int64
	lastRefresh time.Time
}

func NewRosterCache(rides RideLister, clk clock.Clock, logger *slog.Logger, opts ...RosterOption) *RosterCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RosterCache{
		rides:  rides,
		clock:  clk,
		logger: logger,
		ttl:    defaultRosterTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type RosterOption func(*RosterCache)

// WithRosterTTL overrides the refresh interval.
func WithRosterTTL(d time.Duration) RosterOption {
	return func(c *RosterCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// ActiveRideIDs returns the cached operating ride IDs, refreshing from the
// directory when the list is empty or older than the TTL.
func (c *RosterCache) ActiveRideIDs(ctx context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if len(c.ids) > 0 && now.Sub(c.lastRefresh) < c.ttl {
		return append([]int64(nil), c.ids...), nil
	}

	rides, err := c.rides.ListOperating(ctx)
	if err != nil {
		if len(c.ids) > 0 {
			c.logger.Warn("roster refresh failed, serving stale list", "error", err)
			return append([]int64(nil), c.ids...), nil
		}
		return nil, fmt.Errorf("refresh ride roster: %w", err)
	}

	ids := make([]int64, 0, len(rides))
	for _, ride := range rides {
		ids = append(ids, ride.ID)
	}
	c.ids = ids
	c.lastRefresh = now

	return append([]int64(nil), ids...), nil
}
