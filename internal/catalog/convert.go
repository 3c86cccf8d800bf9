package catalog

const (
	// UnknownGear is reported for any gear code missing from the table.
	UnknownGear = "UNKNOWN"
	// ParkGear is the label used before the gear has been read.
	ParkGear = "P"

	tirePressureLowKPa  = 190
	tirePressureHighKPa = 250
)

var gearLabels = map[int]string{
	1: "P",
	2: "R",
	3: "N",
	4: "D",
	5: "S",
	6: "M",
}

// RawToCelsius converts a raw tenths-of-a-degree reading.
func RawToCelsius(raw int) float64 {
	return float64(raw) / 10.0
}

// RawToLiters converts a raw hundredths-of-a-liter reading.
func RawToLiters(raw int) float64 {
	return float64(raw) / 100.0
}

// PressureKPa passes a tire pressure through unchanged; the bus reports kPa.
func PressureKPa(raw int) int {
	return raw
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// GearLabel maps a gear code to its display label.
func GearLabel(code int) string {
	if label, ok := gearLabels[code]; ok {
		return label
	}
	return UnknownGear
}

// TireStatus classifies a tire pressure.
type TireStatus int

const (
	TireNormal TireStatus = iota
	TireLow
	TireHigh
)

func (s TireStatus) String() string {
	switch s {
	case TireLow:
		return "low"
	case TireHigh:
		return "high"
	default:
		return "normal"
	}
}

// ClassifyPressure returns the status of a tire inflated to kpa.
func ClassifyPressure(kpa int) TireStatus {
	switch {
	case kpa < tirePressureLowKPa:
		return TireLow
	case kpa > tirePressureHighKPa:
		return TireHigh
	default:
		return TireNormal
	}
}

// FuelLevelMapping describes which property is read as the fuel level.
// On the reference hardware the fuel level is published under a property
// the vendor labels as something else, so the mapping is configurable.
type FuelLevelMapping struct {
	Enabled  bool
	Property PropertyID
	Area     AreaID
	// Scale converts the raw value to liters.
	Scale float64
}

// DefaultFuelLevelMapping is the mapping observed on the reference hardware.
func DefaultFuelLevelMapping() FuelLevelMapping {
	return FuelLevelMapping{
		Enabled:  true,
		Property: FuelLevelCandidate,
		Area:     AreaGlobal,
		Scale:    0.01,
	}
}

// Liters converts a raw reading through the mapping.
func (m FuelLevelMapping) Liters(raw int) float64 {
	return float64(raw) * m.Scale
}
