package metrics

import (
	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/property/propertytest"
)

// seededFake returns a fake reporting a parked, cold car with every polled
// property present.
func seededFake() *propertytest.Fake {
	f := propertytest.NewFake()
	g := catalog.AreaGlobal

	f.SetInt(catalog.Speed, g, 0)
	f.SetInt(catalog.EngineRPM, g, 800)
	f.SetInt(catalog.Gear, g, 1)
	f.SetInt(catalog.PowerState, g, 4)

	f.SetInt(catalog.CabinTemperature, g, 55)
	f.SetInt(catalog.AmbientTemperature, g, -20)
	f.SetInt(catalog.CoolantTemperature, g, 400)
	f.SetInt(catalog.OilTemperature, g, 380)

	f.SetInt(catalog.FuelRange, g, 300)
	f.SetInt(catalog.FuelCapacity, g, 4500)
	f.SetFloat(catalog.AverageFuel, g, 0)
	f.SetFloat(catalog.AverageFuel, catalog.AreaDriver, 6.0)

	f.SetInt(catalog.Odometer, g, 1000)
	f.SetFloat(catalog.TripMileage, g, 12.5)
	f.SetInt(catalog.TripTime, g, 25)

	for _, w := range catalog.Wheels {
		f.SetInt(catalog.TirePressureID(w), g, 230)
		f.SetInt(catalog.TireTemperatureID(w), g, 12)
	}

	f.SetInt(catalog.BatteryLevel, g, 90)
	f.SetInt(catalog.AirQualityIndex, g, 20)
	f.SetInt(catalog.NightMode, g, 1)
	f.SetInt(catalog.ServiceDueDays, g, 100)
	f.SetInt(catalog.ServiceDueKm, g, 9000)

	return f
}
