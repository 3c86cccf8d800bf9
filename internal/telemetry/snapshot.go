// Package telemetry holds the published vehicle state and the primitive it
// is published through.
package telemetry

import (
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
)

// VehicleSnapshot is an immutable aggregate of the most recently known
// property values. Speed, RPM, Gear and Timestamp always carry a value;
// everything else may be absent.
type VehicleSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Fast tier
	Speed      int      `json:"speed_kmh"`
	RPM        int      `json:"rpm"`
	Gear       string   `json:"gear"`
	PowerState Opt[int] `json:"power_state"`

	// Slow tier
	CabinTemp      Opt[float64]  `json:"cabin_temp_c"`
	AmbientTemp    Opt[float64]  `json:"ambient_temp_c"`
	CoolantTemp    Opt[float64]  `json:"coolant_temp_c"`
	OilTemp        Opt[float64]  `json:"oil_temp_c"`
	Fuel           Opt[FuelData] `json:"fuel"`
	OdometerKm     Opt[int]      `json:"odometer_km"`
	TripDistanceKm Opt[float64]  `json:"trip_distance_km"`
	TripTimeMin    Opt[int]      `json:"trip_time_min"`
	Tires          [4]Tire       `json:"tires"`
	BatteryLevel   Opt[int]      `json:"battery_level"`
	AirQuality     Opt[int]      `json:"air_quality"`
	NightMode      Opt[bool]     `json:"night_mode"`
	ServiceDueDays Opt[int]      `json:"service_due_days"`
	ServiceDueKm   Opt[int]      `json:"service_due_km"`
}

// FuelData is whatever could be read or derived about the tank.
type FuelData struct {
	RangeKm        Opt[int]     `json:"range_km"`
	Liters         Opt[float64] `json:"liters"`
	CapacityLiters Opt[float64] `json:"capacity_liters"`
}

// Tire is one wheel's pressure and temperature.
type Tire struct {
	PressureKPa  Opt[int] `json:"pressure_kpa"`
	TemperatureC Opt[int] `json:"temperature_c"`
}

// NewSnapshot returns a snapshot with nothing read yet.
func NewSnapshot(ts time.Time) VehicleSnapshot {
	return VehicleSnapshot{
		Timestamp: ts,
		Gear:      catalog.ParkGear,
	}
}

// Equal reports whether two snapshots carry the same vehicle state. The
// creation timestamp is not part of the state.
func (s VehicleSnapshot) Equal(other VehicleSnapshot) bool {
	s.Timestamp = time.Time{}
	other.Timestamp = time.Time{}
	return s == other
}

// Tire returns the reading for a wheel.
func (s VehicleSnapshot) Tire(w catalog.Wheel) Tire {
	return s.Tires[w]
}

// Temperature returns the reading for a named source ("cabin" or
// "ambient").
func (s VehicleSnapshot) Temperature(source string) Opt[float64] {
	switch source {
	case "ambient":
		return s.AmbientTemp
	case "cabin":
		return s.CabinTemp
	default:
		return None[float64]()
	}
}

// Status classifies the tire pressure. ok is false when it was not read.
func (t Tire) Status() (catalog.TireStatus, bool) {
	p, ok := t.PressureKPa.Get()
	if !ok {
		return catalog.TireNormal, false
	}
	return catalog.ClassifyPressure(p), true
}

func (t Tire) IsPressureLow() bool {
	s, ok := t.Status()
	return ok && s == catalog.TireLow
}

func (t Tire) IsPressureHigh() bool {
	s, ok := t.Status()
	return ok && s == catalog.TireHigh
}
