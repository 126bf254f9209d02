package domain

type RideStatus string

const (
	RideStatusOperating   RideStatus = "operating"
	RideStatusMaintenance RideStatus = "maintenance"
	RideStatusClosed      RideStatus = "closed"
)

// AmusementRide is a capacity-bounded, cyclically operating ride whose
// occupancy is tracked by the traffic stats engine.
type AmusementRide struct {
	ID           int64
	Name         string
	Location     string
	Status       RideStatus
	Capacity     int // riders served per cycle
	CycleSeconds int // duration of one service cycle
}

// Validate rejects ride parameters the metric computation cannot handle.
func (r AmusementRide) Validate() error {
	if r.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if r.CycleSeconds <= 0 {
		return ErrInvalidCycleDuration
	}
	return nil
}
