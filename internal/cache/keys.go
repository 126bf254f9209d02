package cache

import "strconv"

const statKeyPrefix = "stat:"

// StatKey builds the cache key holding the real-time snapshot for a ride.
func StatKey(rideID int64) string {
	return statKeyPrefix + strconv.FormatInt(rideID, 10)
}
