package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjusucks/parkops/internal/domain"
)

func TestArchiver_ArchiveOlderThan(t *testing.T) {
	t.Parallel()

	ride := domain.AmusementRide{ID: 1, Capacity: 20, CycleSeconds: 300}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := func(n int) []domain.TrafficStat {
		stats := make([]domain.TrafficStat, 0, n)
		for i := 0; i < n; i++ {
			at := base.Add(time.Duration(i) * domain.RecordInterval)
			stats = append(stats, domain.NewTrafficStat(ride, at, i, at))
		}
		return stats
	}

	t.Run("removes exactly the snapshots at or before the cutoff", func(t *testing.T) {
		stats := newFakeStatStore(seed(10)...)
		cutoff := base.Add(4 * domain.RecordInterval)

		removed, err := NewArchiver(stats, discardLogger()).ArchiveOlderThan(context.Background(), cutoff)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if removed != 5 {
			t.Fatalf("expected 5 removed (cutoff inclusive), got %d", removed)
		}
		if stats.count() != 5 {
			t.Fatalf("expected 5 remaining, got %d", stats.count())
		}
		if _, ok := stats.byID(1, base.Add(5*domain.RecordInterval)); !ok {
			t.Fatalf("expected snapshot after cutoff to survive")
		}
	})

	t.Run("pages through large backlogs", func(t *testing.T) {
		stats := newFakeStatStore(seed(25)...)
		cutoff := base.Add(25 * domain.RecordInterval)

		removed, err := NewArchiver(stats, discardLogger(), WithArchivePageSize(7)).
			ArchiveOlderThan(context.Background(), cutoff)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if removed != 25 {
			t.Fatalf("expected all 25 removed, got %d", removed)
		}
		if stats.count() != 0 {
			t.Fatalf("expected empty store, got %d", stats.count())
		}
	})

	t.Run("rerun with the same cutoff finds nothing", func(t *testing.T) {
		stats := newFakeStatStore(seed(3)...)
		cutoff := base.Add(time.Hour)
		arch := NewArchiver(stats, discardLogger())

		ctx := context.Background()
		if _, err := arch.ArchiveOlderThan(ctx, cutoff); err != nil {
			t.Fatalf("first run: %v", err)
		}
		removed, err := arch.ArchiveOlderThan(ctx, cutoff)
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		if removed != 0 {
			t.Fatalf("expected idempotent rerun, removed %d", removed)
		}
	})

	t.Run("query failure returns the partial count", func(t *testing.T) {
		stats := newFakeStatStore(seed(3)...)
		stats.findErr = errors.New("db down")

		removed, err := NewArchiver(stats, discardLogger()).
			ArchiveOlderThan(context.Background(), base.Add(time.Hour))
		if err == nil {
			t.Fatalf("expected error")
		}
		if removed != 0 {
			t.Fatalf("expected 0 removed before failure, got %d", removed)
		}
	})

	t.Run("cancelled context stops between pages", func(t *testing.T) {
		stats := newFakeStatStore(seed(5)...)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewArchiver(stats, discardLogger()).ArchiveOlderThan(ctx, base.Add(time.Hour))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
