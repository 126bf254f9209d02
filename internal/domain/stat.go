package domain

import "time"

// RecordInterval is the quantization step for reconciled snapshots.
const RecordInterval = 15 * time.Minute

// TrafficStat is the point-in-time occupancy record for one ride.
// Identity is the composite (RideID, RecordTime). The derived fields
// (QueueLength, WaitingTime, IsCrowded) are always a pure function of
// VisitorCount and the ride's capacity and cycle duration.
//
// JSON tags define the cache payload format.
type TrafficStat struct {
	RideID       int64     `json:"ride_id"`
	RecordTime   time.Time `json:"record_time"`
	VisitorCount int       `json:"visitor_count"`
	QueueLength  int       `json:"queue_length"`
	WaitingTime  int       `json:"waiting_time"` // minutes
	IsCrowded    bool      `json:"is_crowded"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewTrafficStat builds a snapshot for a ride with derived fields computed
// from the given visitor count.
func NewTrafficStat(ride AmusementRide, recordTime time.Time, visitorCount int, now time.Time) TrafficStat {
	stat := TrafficStat{
		RideID:     ride.ID,
		RecordTime: recordTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stat.SetVisitorCount(visitorCount, ride)
	return stat
}

// SetVisitorCount updates the occupancy count and recomputes the derived
// fields. Negative counts are clamped to zero.
func (s *TrafficStat) SetVisitorCount(count int, ride AmusementRide) {
	if count < 0 {
		count = 0
	}
	m := ComputeTrafficMetrics(count, ride.Capacity, ride.CycleSeconds)
	s.VisitorCount = count
	s.QueueLength = m.QueueLength
	s.WaitingTime = m.WaitingTime
	s.IsCrowded = m.IsCrowded
}

// QuantizeRecordTime floors t to the reconciliation interval boundary in UTC.
func QuantizeRecordTime(t time.Time) time.Time {
	return t.UTC().Truncate(RecordInterval)
}
