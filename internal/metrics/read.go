package metrics

import (
	"context"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
)

// readFast refreshes speed, rpm, gear and power state. The always-present
// fields keep their previous value when a read fails.
func (a *Aggregator) readFast(ctx context.Context, s *telemetry.VehicleSnapshot) {
	g := catalog.AreaGlobal

	if v, ok := a.reader.ReadInt(ctx, catalog.Speed, g); ok {
		s.Speed = v
	}
	if v, ok := a.reader.ReadInt(ctx, catalog.EngineRPM, g); ok {
		s.RPM = v
	}
	if v, ok := a.reader.ReadInt(ctx, catalog.Gear, g); ok {
		s.Gear = catalog.GearLabel(v)
	}
	s.PowerState = a.readInt(ctx, catalog.PowerState)
}

// readSlow refreshes every slow-tier field. A failed read leaves the field
// absent until the next slow tick.
func (a *Aggregator) readSlow(ctx context.Context, s *telemetry.VehicleSnapshot) {
	s.CabinTemp = a.readCelsius(ctx, catalog.CabinTemperature)
	s.AmbientTemp = a.readCelsius(ctx, catalog.AmbientTemperature)
	s.CoolantTemp = a.readCelsius(ctx, catalog.CoolantTemperature)
	s.OilTemp = a.readCelsius(ctx, catalog.OilTemperature)

	s.Fuel = a.readFuel(ctx)

	s.OdometerKm = a.readInt(ctx, catalog.Odometer)
	s.TripDistanceKm = telemetry.None[float64]()
	if v, ok := a.tripMileage.read(ctx, a.reader, a.log); ok {
		s.TripDistanceKm = telemetry.Some(v)
	}
	s.TripTimeMin = telemetry.None[int]()
	if v, ok := a.tripTime.read(ctx, a.reader, a.log); ok {
		s.TripTimeMin = telemetry.Some(int(v))
	}

	for _, w := range catalog.Wheels {
		tire := telemetry.Tire{
			TemperatureC: a.readInt(ctx, catalog.TireTemperatureID(w)),
		}
		if v, ok := a.reader.ReadInt(ctx, catalog.TirePressureID(w), catalog.AreaGlobal); ok {
			tire.PressureKPa = telemetry.Some(catalog.PressureKPa(v))
		}
		s.Tires[w] = tire
	}

	s.BatteryLevel = a.readInt(ctx, catalog.BatteryLevel)
	s.AirQuality = a.readInt(ctx, catalog.AirQualityIndex)
	s.NightMode = telemetry.None[bool]()
	if v, ok := a.reader.ReadInt(ctx, catalog.NightMode, catalog.AreaGlobal); ok {
		s.NightMode = telemetry.Some(v != 0)
	}
	s.ServiceDueDays = a.readInt(ctx, catalog.ServiceDueDays)
	s.ServiceDueKm = a.readInt(ctx, catalog.ServiceDueKm)
}

func (a *Aggregator) readInt(ctx context.Context, id catalog.PropertyID) telemetry.Opt[int] {
	if v, ok := a.reader.ReadInt(ctx, id, catalog.AreaGlobal); ok {
		return telemetry.Some(v)
	}
	return telemetry.None[int]()
}

func (a *Aggregator) readCelsius(ctx context.Context, id catalog.PropertyID) telemetry.Opt[float64] {
	if v, ok := a.reader.ReadInt(ctx, id, catalog.AreaGlobal); ok {
		return telemetry.Some(catalog.RawToCelsius(v))
	}
	return telemetry.None[float64]()
}

func (a *Aggregator) readFuel(ctx context.Context) telemetry.Opt[telemetry.FuelData] {
	in := fuelInputs{
		rangeKm:  a.readInt(ctx, catalog.FuelRange),
		capacity: telemetry.None[float64](),
		level:    telemetry.None[float64](),
	}

	if v, ok := a.reader.ReadInt(ctx, catalog.FuelCapacity, catalog.AreaGlobal); ok && v > 0 {
		in.capacity = telemetry.Some(catalog.RawToLiters(v))
	} else if a.cfg.FuelCapacityLiters > 0 {
		in.capacity = telemetry.Some(a.cfg.FuelCapacityLiters)
	}

	if v, ok := a.avgFuel.read(ctx, a.reader, a.log); ok {
		in.avgPer100 = v
	}

	if m := a.cfg.FuelLevel; m.Enabled && in.avgPer100 <= 0 {
		if raw, ok := a.reader.ReadInt(ctx, m.Property, m.Area); ok && raw > 0 {
			in.level = telemetry.Some(m.Liters(raw))
		}
	}

	return deriveFuel(in)
}

type fuelInputs struct {
	rangeKm   telemetry.Opt[int]
	avgPer100 float64
	capacity  telemetry.Opt[float64]
	// level is the liters read through the fuel-level mapping, if any.
	level telemetry.Opt[float64]
}

// deriveFuel computes liters = range * consumption / 100 when both are known
// and falls back to the mapped fuel level otherwise. Liters are clamped to
// [0, capacity].
func deriveFuel(in fuelInputs) telemetry.Opt[telemetry.FuelData] {
	fuel := telemetry.FuelData{
		RangeKm:        in.rangeKm,
		CapacityLiters: in.capacity,
	}

	if rangeKm, ok := in.rangeKm.Get(); ok && in.avgPer100 > 0 {
		fuel.Liters = telemetry.Some(clampLiters(float64(rangeKm)*in.avgPer100/100, in.capacity))
	} else if level, ok := in.level.Get(); ok {
		fuel.Liters = telemetry.Some(clampLiters(level, in.capacity))
	}

	if !fuel.RangeKm.Valid && !fuel.Liters.Valid {
		return telemetry.None[telemetry.FuelData]()
	}

	return telemetry.Some(fuel)
}

func clampLiters(v float64, capacity telemetry.Opt[float64]) float64 {
	if v < 0 {
		return 0
	}
	if c, ok := capacity.Get(); ok && v > c {
		return c
	}
	return v
}
