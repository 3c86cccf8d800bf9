package metrics

import (
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
)

const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultSlowEvery = 6
)

type Config struct {
	// Interval between ticks. Fast properties are read every tick.
	Interval time.Duration
	// SlowEvery is the number of ticks between slow reads.
	SlowEvery int
	// FuelCapacityLiters is used when the tank capacity cannot be read.
	// Zero means unknown.
	FuelCapacityLiters float64
	FuelLevel          catalog.FuelLevelMapping
}

func DefaultConfig() Config {
	return Config{
		Interval:  DefaultInterval,
		SlowEvery: DefaultSlowEvery,
		FuelLevel: catalog.DefaultFuelLevelMapping(),
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, c.Interval.String())
	}
	if c.SlowEvery < 1 {
		return errFactory.WithData(ErrInvalidSlowEvery, c.SlowEvery)
	}
	if c.FuelCapacityLiters < 0 {
		return errFactory.WithData(ErrInvalidCapacity, c.FuelCapacityLiters)
	}

	return nil
}
