package catalog_test

import (
	"testing"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestConversions(t *testing.T) {
	assert.InDelta(t, 21.5, catalog.RawToCelsius(215), 1e-9)
	assert.InDelta(t, -4.0, catalog.RawToCelsius(-40), 1e-9)
	assert.InDelta(t, 45.0, catalog.RawToLiters(4500), 1e-9)
	assert.Equal(t, 230, catalog.PressureKPa(230))
	assert.InDelta(t, 0.0, catalog.FahrenheitToCelsius(32), 1e-9)
	assert.InDelta(t, 100.0, catalog.FahrenheitToCelsius(212), 1e-9)
}

func TestGearLabel(t *testing.T) {
	assert.Equal(t, "P", catalog.GearLabel(1))
	assert.Equal(t, "D", catalog.GearLabel(4))
	assert.Equal(t, catalog.UnknownGear, catalog.GearLabel(0))
	assert.Equal(t, catalog.UnknownGear, catalog.GearLabel(99))
}

func TestClassifyPressure(t *testing.T) {
	assert.Equal(t, catalog.TireLow, catalog.ClassifyPressure(172))
	assert.Equal(t, catalog.TireNormal, catalog.ClassifyPressure(190))
	assert.Equal(t, catalog.TireNormal, catalog.ClassifyPressure(230))
	assert.Equal(t, catalog.TireNormal, catalog.ClassifyPressure(250))
	assert.Equal(t, catalog.TireHigh, catalog.ClassifyPressure(260))
	assert.Equal(t, "low", catalog.TireLow.String())
}

func TestDriveModeLookups(t *testing.T) {
	for _, m := range catalog.DriveModes {
		assert.Equal(t, m, catalog.ModeFromCode(m.Code()))
		assert.Equal(t, m, catalog.ModeFromKey(m.Key()))
		assert.Equal(t, m, catalog.ModeFromKey(m.DisplayName()))
		assert.True(t, m.IsKnown())
	}

	assert.Equal(t, 3, catalog.ModeSport.Code())
	assert.Equal(t, catalog.ModeUnknown, catalog.ModeFromCode(42))
	assert.Equal(t, catalog.ModeUnknown, catalog.ModeFromKey("turbo"))
	assert.Equal(t, catalog.ModeEco, catalog.ModeFromKey("  ECO "))
	assert.False(t, catalog.ModeUnknown.IsKnown())
}

func TestFuelLevelMapping(t *testing.T) {
	m := catalog.DefaultFuelLevelMapping()
	assert.True(t, m.Enabled)
	assert.InDelta(t, 32.5, m.Liters(3250), 1e-9)

	m.Scale = 0.1
	assert.InDelta(t, 325.0, m.Liters(3250), 1e-9)
}

func TestAddressString(t *testing.T) {
	a := catalog.Address{ID: catalog.AverageFuel, Area: catalog.AreaDriver}
	assert.Equal(t, "0x1302/1", a.String())
	assert.Equal(t, catalog.TirePressureRearLeft, catalog.TirePressureID(catalog.RearLeft))
	assert.Equal(t, "rear_right", catalog.RearRight.String())
}
