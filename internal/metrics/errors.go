package metrics

import "codeberg.org/mutker/vehiclectl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig    = errors.ErrInvalidConfig
	ErrInvalidInterval  = errors.ErrInvalidInterval
	ErrInvalidSlowEvery = errors.ErrorCode("metrics_invalid_slow_every")
	ErrInvalidCapacity  = errors.ErrorCode("metrics_invalid_fuel_capacity")

	// Lifecycle Errors
	ErrLifecycle = errors.ErrorCode("metrics_lifecycle_failed")
)
