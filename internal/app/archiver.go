package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tjusucks/parkops/internal/domain"
)

// ArchiveStore pages and deletes durable snapshots.
type ArchiveStore interface {
	FindOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.TrafficStat, error)
	Delete(ctx context.Context, rideID int64, recordTime time.Time) error
}

const defaultArchivePageSize = 1000

// Archiver removes snapshots whose record time fell behind the retention
// cutoff, in bounded pages. Re-running with the same cutoff simply finds
// fewer rows, so the job is safe to resume after a crash.
type Archiver struct {
	stats    ArchiveStore
	logger   *slog.Logger
	pageSize int
}

func NewArchiver(stats ArchiveStore, logger *slog.Logger, opts ...ArchiverOption) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Archiver{
		stats:    stats,
		logger:   logger,
		pageSize: defaultArchivePageSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type ArchiverOption func(*Archiver)

// WithArchivePageSize overrides the deletion batch size.
func WithArchivePageSize(n int) ArchiverOption {
	return func(a *Archiver) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// ArchiveOlderThan deletes all snapshots with record_time <= cutoff and
// returns how many were removed.
func (a *Archiver) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		page, err := a.stats.FindOlderThan(ctx, cutoff, a.pageSize)
		if err != nil {
			return total, fmt.Errorf("find stats to archive: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, stat := range page {
			if err := a.stats.Delete(ctx, stat.RideID, stat.RecordTime); err != nil {
				return total, fmt.Errorf("archive stat ride=%d: %w", stat.RideID, err)
			}
			total++
		}
	}

	a.logger.Info("archived old traffic stats", "cutoff", cutoff, "removed", total)
	return total, nil
}
