// Package catalog maps semantic vehicle properties to their bus identifiers
// and converts raw bus values into engineering units.
//
// The identifiers were reverse-engineered from head-unit traffic and only
// hold for the hardware revisions they were observed on.
package catalog

import "fmt"

type (
	// PropertyID is an opaque key into the hardware property space.
	PropertyID int
	// AreaID qualifies a property with a sub-zone (seat, wheel, ...).
	AreaID int
)

// Address is the addressable unit of the property bus.
type Address struct {
	ID   PropertyID
	Area AreaID
}

func (a Address) String() string {
	return fmt.Sprintf("0x%04x/%d", int(a.ID), int(a.Area))
}

const (
	AreaGlobal    AreaID = 0
	AreaDriver    AreaID = 1
	AreaPassenger AreaID = 2
)

// Fast tier
const (
	Speed      PropertyID = 0x1101 // km/h
	EngineRPM  PropertyID = 0x1102
	Gear       PropertyID = 0x1103 // gear code, see GearLabel
	PowerState PropertyID = 0x1104 // raw ignition code
)

// Temperatures, raw tenths of a degree Celsius
const (
	CabinTemperature   PropertyID = 0x1201
	AmbientTemperature PropertyID = 0x1202
	CoolantTemperature PropertyID = 0x1203
	OilTemperature     PropertyID = 0x1204
)

// Fuel
const (
	FuelRange          PropertyID = 0x1301 // km
	AverageFuel        PropertyID = 0x1302 // float, L/100km
	FuelCapacity       PropertyID = 0x1303 // raw hundredths of a liter
	FuelLevelCandidate PropertyID = 0x1304 // labelled "oil level" by the vendor
)

// Distance and trip
const (
	Odometer    PropertyID = 0x1401 // km
	TripMileage PropertyID = 0x1402 // float, km
	TripTime    PropertyID = 0x1403 // minutes
)

// Tires, pressure in kPa and temperature in degrees Celsius
const (
	TirePressureFrontLeft  PropertyID = 0x1501
	TirePressureFrontRight PropertyID = 0x1502
	TirePressureRearLeft   PropertyID = 0x1503
	TirePressureRearRight  PropertyID = 0x1504
	TireTempFrontLeft      PropertyID = 0x1511
	TireTempFrontRight     PropertyID = 0x1512
	TireTempRearLeft       PropertyID = 0x1513
	TireTempRearRight      PropertyID = 0x1514
)

// Body and service
const (
	BatteryLevel     PropertyID = 0x1601 // percent
	AirQualityIndex  PropertyID = 0x1602
	NightMode        PropertyID = 0x1603 // non-zero when dark theme is active
	ServiceDueDays   PropertyID = 0x1604
	ServiceDueKm     PropertyID = 0x1605
	SeatHeatingLevel PropertyID = 0x1701 // 0-3, area = seat
)

// DriveModeFunction is the function id that accepts a DriveMode vendor code.
const DriveModeFunction PropertyID = 0x1801

// Wheel positions in snapshot order.
type Wheel int

const (
	FrontLeft Wheel = iota
	FrontRight
	RearLeft
	RearRight
)

// Wheels lists every wheel in snapshot order.
var Wheels = [4]Wheel{FrontLeft, FrontRight, RearLeft, RearRight}

var tirePressureIDs = [4]PropertyID{
	TirePressureFrontLeft, TirePressureFrontRight, TirePressureRearLeft, TirePressureRearRight,
}

var tireTempIDs = [4]PropertyID{
	TireTempFrontLeft, TireTempFrontRight, TireTempRearLeft, TireTempRearRight,
}

// TirePressureID returns the pressure property for a wheel.
func TirePressureID(w Wheel) PropertyID { return tirePressureIDs[w] }

// TireTemperatureID returns the temperature property for a wheel.
func TireTemperatureID(w Wheel) PropertyID { return tireTempIDs[w] }

func (w Wheel) String() string {
	switch w {
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case RearLeft:
		return "rear_left"
	case RearRight:
		return "rear_right"
	default:
		return "unknown"
	}
}
