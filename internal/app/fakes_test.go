package app

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tjusucks/parkops/internal/cache"
	"github.com/tjusucks/parkops/internal/domain"
)

// fakeCacheStore is an in-memory cache.Store that records written TTLs.
type fakeCacheStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeCacheStore) GetString(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (f *fakeCacheStore) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.ttls, key)
	return nil
}

func (f *fakeCacheStore) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// fakeRideDirectory serves rides by ID and the operating roster.
type fakeRideDirectory struct {
	mu        sync.Mutex
	rides     map[int64]domain.AmusementRide
	listErr   error
	listCalls int
}

func newFakeRideDirectory(rides ...domain.AmusementRide) *fakeRideDirectory {
	m := make(map[int64]domain.AmusementRide)
	for _, r := range rides {
		m[r.ID] = r
	}
	return &fakeRideDirectory{rides: m}
}

func (f *fakeRideDirectory) GetByID(_ context.Context, rideID int64) (domain.AmusementRide, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return domain.AmusementRide{}, domain.ErrRideNotFound
	}
	return ride, nil
}

func (f *fakeRideDirectory) ListOperating(_ context.Context) ([]domain.AmusementRide, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.AmusementRide
	for _, r := range f.rides {
		if r.Status == domain.RideStatusOperating {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// stubRoster returns a fixed roster without refresh logic.
type stubRoster struct {
	ids []int64
	err error
}

func (s stubRoster) ActiveRideIDs(context.Context) ([]int64, error) {
	return s.ids, s.err
}

type statKey struct {
	rideID int64
	at     int64 // record time, unix nanos UTC
}

func keyFor(rideID int64, t time.Time) statKey {
	return statKey{rideID: rideID, at: t.UTC().UnixNano()}
}

// fakeStatStore implements SnapshotReader, SnapshotStore and ArchiveStore
// over an in-memory map keyed by (ride, record time).
type fakeStatStore struct {
	mu        sync.Mutex
	stats     map[statKey]domain.TrafficStat
	latestErr error
	insertErr error
	findErr   error

	// raceStat, when set with insertErr, appears in the store the moment
	// an Insert fails, the way a concurrent writer's committed row would.
	raceStat *domain.TrafficStat
}

func newFakeStatStore(stats ...domain.TrafficStat) *fakeStatStore {
	f := &fakeStatStore{stats: make(map[statKey]domain.TrafficStat)}
	for _, s := range stats {
		f.stats[keyFor(s.RideID, s.RecordTime)] = s
	}
	return f
}

func (f *fakeStatStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStatStore) GetByID(_ context.Context, rideID int64, recordTime time.Time) (*domain.TrafficStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stats[keyFor(rideID, recordTime)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStatStore) GetLatest(_ context.Context, rideID int64, from, to time.Time) (*domain.TrafficStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	var latest *domain.TrafficStat
	for _, s := range f.stats {
		if s.RideID != rideID || s.RecordTime.Before(from) || s.RecordTime.After(to) {
			continue
		}
		if latest == nil || s.RecordTime.After(latest.RecordTime) {
			copied := s
			latest = &copied
		}
	}
	return latest, nil
}

func (f *fakeStatStore) GetLastBefore(_ context.Context, rideID int64, before time.Time) (*domain.TrafficStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	var latest *domain.TrafficStat
	for _, s := range f.stats {
		if s.RideID != rideID || s.RecordTime.After(before) {
			continue
		}
		if latest == nil || s.RecordTime.After(latest.RecordTime) {
			copied := s
			latest = &copied
		}
	}
	return latest, nil
}

func (f *fakeStatStore) Insert(_ context.Context, stat domain.TrafficStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		if f.raceStat != nil {
			k := keyFor(f.raceStat.RideID, f.raceStat.RecordTime)
			if _, ok := f.stats[k]; !ok {
				f.stats[k] = *f.raceStat
			}
		}
		return f.insertErr
	}
	k := keyFor(stat.RideID, stat.RecordTime)
	if _, ok := f.stats[k]; ok {
		return domain.ErrStatExists
	}
	f.stats[k] = stat
	return nil
}

func (f *fakeStatStore) Update(_ context.Context, stat domain.TrafficStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyFor(stat.RideID, stat.RecordTime)
	if _, ok := f.stats[k]; !ok {
		return domain.ErrStatNotFound
	}
	f.stats[k] = stat
	return nil
}

func (f *fakeStatStore) FindOlderThan(_ context.Context, cutoff time.Time, limit int) ([]domain.TrafficStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.TrafficStat
	for _, s := range f.stats {
		if !s.RecordTime.After(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordTime.Equal(out[j].RecordTime) {
			return out[i].RideID < out[j].RideID
		}
		return out[i].RecordTime.Before(out[j].RecordTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStatStore) Delete(_ context.Context, rideID int64, recordTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stats, keyFor(rideID, recordTime))
	return nil
}

func (f *fakeStatStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stats)
}

func (f *fakeStatStore) byID(rideID int64, recordTime time.Time) (domain.TrafficStat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[keyFor(rideID, recordTime)]
	return s, ok
}

// recordingObserver tallies reconciliation outcomes.
type recordingObserver struct {
	processed atomic.Int64
	failed    atomic.Int64
}

func (o *recordingObserver) RideProcessed() { o.processed.Add(1) }
func (o *recordingObserver) RideFailed()    { o.failed.Add(1) }

type ledgerDelta struct {
	entries int
	exits   int
}

// fakeEntryLedger serves fixed deltas per ride and records query windows.
type fakeEntryLedger struct {
	mu      sync.Mutex
	deltas  map[int64]ledgerDelta
	errs    map[int64]error
	windows map[int64][2]time.Time
}

func newFakeEntryLedger() *fakeEntryLedger {
	return &fakeEntryLedger{
		deltas:  make(map[int64]ledgerDelta),
		errs:    make(map[int64]error),
		windows: make(map[int64][2]time.Time),
	}
}

func (f *fakeEntryLedger) NetDelta(_ context.Context, rideID int64, from, to time.Time) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[rideID] = [2]time.Time{from, to}
	if err := f.errs[rideID]; err != nil {
		return 0, 0, err
	}
	d := f.deltas[rideID]
	return d.entries, d.exits, nil
}
