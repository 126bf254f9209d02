package domain

import "errors"

var (
	ErrRideNotFound         = errors.New("ride not found")
	ErrStatNotFound         = errors.New("traffic stat not found")
	ErrStatExists           = errors.New("traffic stat already exists")
	ErrInvalidCapacity      = errors.New("invalid ride capacity")
	ErrInvalidCycleDuration = errors.New("invalid ride cycle duration")
	ErrInvalidID            = errors.New("invalid id")
	ErrRideNotOperating     = errors.New("ride is not operating")
)
