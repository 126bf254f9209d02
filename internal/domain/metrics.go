package domain

// TrafficMetrics holds the queueing metrics derived from an occupancy count.
type TrafficMetrics struct {
	QueueLength int
	WaitingTime int // minutes
	IsCrowded   bool
}

// ComputeTrafficMetrics derives queue length, waiting time and crowded
// status from the current occupancy and the ride's parameters.
//
// Callers must reject capacity <= 0 upstream (AmusementRide.Validate);
// the computation itself is pure and never fails for valid rides.
func ComputeTrafficMetrics(visitorCount, capacity, cycleSeconds int) TrafficMetrics {
	if visitorCount < 0 {
		visitorCount = 0
	}

	queue := visitorCount - capacity
	if queue < 0 {
		queue = 0
	}

	// Full cycles needed to serve the queue, rounded up.
	cycles := (queue + capacity - 1) / capacity

	// Waiting time in whole minutes, rounded up.
	waiting := (cycles*cycleSeconds + 59) / 60

	return TrafficMetrics{
		QueueLength: queue,
		WaitingTime: waiting,
		IsCrowded:   visitorCount > capacity*2,
	}
}
