package heating_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/property/propertytest"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 15, 7, 30, 0, 0, time.UTC)

func newSeats(driver, passenger int) *propertytest.Fake {
	f := propertytest.NewFake()
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, driver)
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaPassenger, passenger)
	return f
}

func cabin(temp float64) telemetry.VehicleSnapshot {
	s := telemetry.NewSnapshot(t0)
	s.CabinTemp = telemetry.Some(temp)
	s.AmbientTemp = telemetry.Some(temp - 5)
	return s
}

func seatLevel(t *testing.T, f *propertytest.Fake, area catalog.AreaID) int {
	t.Helper()
	v, err := f.ReadInt(context.Background(), catalog.SeatHeatingLevel, area)
	require.NoError(t, err)
	return v
}

func newController(t *testing.T, f *propertytest.Fake, s heating.Settings) *heating.Controller {
	t.Helper()
	c, err := heating.NewController(property.NewBridge(f), s)
	require.NoError(t, err)
	return c
}

func TestAdaptiveLevel(t *testing.T) {
	assert.Equal(t, 0, heating.AdaptiveLevel(12, 10))
	assert.Equal(t, 0, heating.AdaptiveLevel(10, 10))
	assert.Equal(t, 1, heating.AdaptiveLevel(9.5, 10))
	assert.Equal(t, 2, heating.AdaptiveLevel(5, 10))
	assert.Equal(t, 2, heating.AdaptiveLevel(1, 10))
	assert.Equal(t, 3, heating.AdaptiveLevel(0, 10))
	assert.Equal(t, 3, heating.AdaptiveLevel(-15, 10))
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, heating.DefaultSettings().Validate())

	s := heating.DefaultSettings()
	s.Level = 4
	err := s.Validate()
	assert.True(t, errors.HasCode(err, heating.ErrInvalidSettings))
	assert.True(t, errors.HasCode(err, heating.ErrInvalidLevel))

	s = heating.DefaultSettings()
	s.Mode = "rear"
	assert.True(t, errors.HasCode(s.Validate(), heating.ErrInvalidMode))

	s = heating.DefaultSettings()
	s.Source = "engine"
	assert.True(t, errors.HasCode(s.Validate(), heating.ErrInvalidSource))

	s = heating.DefaultSettings()
	s.AutoOffMinutes = -1
	assert.True(t, errors.HasCode(s.Validate(), heating.ErrInvalidDuration))

	m, err := heating.ParseMode(" Both ")
	require.NoError(t, err)
	assert.Equal(t, heating.ModeBoth, m)
	assert.Len(t, m.Seats(), 2)
	assert.Empty(t, heating.ModeOff.Seats())
}

func TestBaselineIsNotAnOverride(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	c := newController(t, f, s)
	ctx := context.Background()

	st := c.Evaluate(ctx, cabin(20), t0)
	assert.True(t, st.SetupComplete)
	assert.True(t, st.LastManualOverride.IsZero())
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.Empty(t, f.Writes())

	// someone turns the driver seat to 2
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, 2)
	st = c.Evaluate(ctx, cabin(20), t0.Add(time.Minute))
	assert.Equal(t, heating.DecisionOverride, st.LastDecision)
	assert.Equal(t, t0.Add(time.Minute), st.LastManualOverride)
	assert.Equal(t, heating.Levels{2, 0}, st.ManualLevels)
	assert.Equal(t, heating.Levels{2, 0}, st.Commanded)
	assert.Empty(t, f.Writes())

	// inside the silence window nothing is written even though it is cold
	st = c.Evaluate(ctx, cabin(-5), t0.Add(4*time.Minute))
	assert.Equal(t, heating.DecisionSilenced, st.LastDecision)
	assert.Empty(t, f.Writes())
	assert.True(t, st.Silenced(t0.Add(5*time.Minute+59*time.Second)))

	// after the window the rule takes over again
	st = c.Evaluate(ctx, cabin(-5), t0.Add(7*time.Minute))
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.Equal(t, heating.Levels{3, 3}, st.Commanded)
	assert.Equal(t, 3, seatLevel(t, f, catalog.AreaDriver))
	assert.Equal(t, 3, seatLevel(t, f, catalog.AreaPassenger))
}

func TestSameValueIsNotAnOverride(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	s.Adaptive = false
	s.Level = 2
	c := newController(t, f, s)
	ctx := context.Background()

	st := c.Evaluate(ctx, cabin(20), t0)
	assert.Equal(t, heating.Levels{2, 0}, st.Commanded)

	// hardware reports exactly what was commanded
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, 2)
	st = c.Evaluate(ctx, cabin(20), t0.Add(time.Minute))
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.True(t, st.LastManualOverride.IsZero())
	assert.Len(t, f.Writes(), 1)
}

func TestOnlyModeSeatsAreWritten(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModePassenger
	c := newController(t, f, s)

	st := c.Evaluate(context.Background(), cabin(0), t0)
	assert.Equal(t, heating.Levels{0, 3}, st.Commanded)
	require.Len(t, f.Writes(), 1)
	assert.Equal(t, catalog.AreaPassenger, f.Writes()[0].Address.Area)
}

func TestAmbientSource(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	s.Source = heating.SourceAmbient
	c := newController(t, f, s)

	// cabin 12 is above the threshold, ambient 7 is not
	st := c.Evaluate(context.Background(), cabin(12), t0)
	assert.Equal(t, heating.Levels{1, 0}, st.Commanded)
}

func TestModeOffDisablesControl(t *testing.T) {
	f := newSeats(0, 0)
	c := newController(t, f, heating.DefaultSettings())

	st := c.Evaluate(context.Background(), cabin(-10), t0)
	assert.Equal(t, heating.DecisionDisabled, st.LastDecision)
	assert.Empty(t, f.Writes())
}

func TestMissingTemperatureSkipsControl(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	c := newController(t, f, s)

	st := c.Evaluate(context.Background(), telemetry.NewSnapshot(t0), t0)
	assert.Equal(t, heating.DecisionNoTemperature, st.LastDecision)
	assert.Empty(t, f.Writes())
}

func TestReadFailureSkipsTick(t *testing.T) {
	f := newSeats(0, 0)
	f.Fail(catalog.SeatHeatingLevel, catalog.AreaPassenger)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	c := newController(t, f, s)

	st := c.Evaluate(context.Background(), cabin(-10), t0)
	assert.Equal(t, heating.DecisionReadFailed, st.LastDecision)
	assert.False(t, st.SetupComplete)
	assert.Empty(t, f.Writes())
}

func TestAutoOff(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	s.Adaptive = false
	s.Level = 2
	s.AutoOffMinutes = 30
	c := newController(t, f, s)
	ctx := context.Background()

	st := c.Evaluate(ctx, cabin(-10), t0)
	assert.Equal(t, heating.Levels{2, 2}, st.Commanded)
	assert.Equal(t, t0, st.HeatingActivatedAt)

	st = c.Evaluate(ctx, cabin(-10), t0.Add(29*time.Minute))
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.Equal(t, heating.Levels{2, 2}, st.Commanded)

	st = c.Evaluate(ctx, cabin(-10), t0.Add(31*time.Minute))
	assert.Equal(t, heating.DecisionAutoOff, st.LastDecision)
	assert.Equal(t, heating.Levels{0, 0}, st.Commanded)
	assert.True(t, st.AutoOffLatched)
	assert.True(t, st.HeatingActivatedAt.IsZero())
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaDriver))

	// stays off while latched
	st = c.Evaluate(ctx, cabin(-10), t0.Add(40*time.Minute))
	assert.Equal(t, heating.DecisionAutoOff, st.LastDecision)
	assert.Equal(t, heating.Levels{0, 0}, st.Commanded)

	// a settings change releases the latch
	require.NoError(t, c.UpdateSettings(s))
	st = c.Evaluate(ctx, cabin(-10), t0.Add(41*time.Minute))
	assert.Equal(t, heating.Levels{2, 2}, st.Commanded)
	assert.False(t, st.AutoOffLatched)
}

func TestAutoOffOverridesSilenceWindow(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	s.Adaptive = false
	s.Level = 1
	s.AutoOffMinutes = 30
	s.SilenceWindow = time.Hour
	c := newController(t, f, s)
	ctx := context.Background()

	c.Evaluate(ctx, cabin(0), t0)

	// a manual bump to 3 keeps the heater on, the timer keeps running
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, 3)
	st := c.Evaluate(ctx, cabin(0), t0.Add(time.Minute))
	require.Equal(t, heating.DecisionOverride, st.LastDecision)

	st = c.Evaluate(ctx, cabin(0), t0.Add(31*time.Minute))
	assert.Equal(t, heating.DecisionAutoOff, st.LastDecision)
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaDriver))
}

func TestWriteFailureRetries(t *testing.T) {
	f := newSeats(0, 0)
	f.FailWrites(catalog.SeatHeatingLevel, catalog.AreaDriver)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	c := newController(t, f, s)
	ctx := context.Background()

	st := c.Evaluate(ctx, cabin(0), t0)
	assert.Equal(t, heating.Levels{0, 3}, st.Commanded)

	// the unconfirmed seat is not mistaken for a manual change
	st = c.Evaluate(ctx, cabin(0), t0.Add(3*time.Second))
	assert.True(t, st.LastManualOverride.IsZero())
	assert.Equal(t, heating.Levels{0, 3}, st.Commanded)

	f.Heal(catalog.SeatHeatingLevel, catalog.AreaDriver)
	st = c.Evaluate(ctx, cabin(0), t0.Add(6*time.Second))
	assert.Equal(t, heating.Levels{3, 3}, st.Commanded)
	assert.Equal(t, t0, st.HeatingActivatedAt)
}

func TestResetTakesNewBaseline(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	c := newController(t, f, s)
	ctx := context.Background()

	c.Evaluate(ctx, cabin(0), t0)
	assert.Equal(t, 3, seatLevel(t, f, catalog.AreaDriver))

	// the head unit powers up with seats off
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, 0)
	c.Reset()
	assert.False(t, c.State().SetupComplete)

	st := c.Evaluate(ctx, cabin(0), t0.Add(time.Hour))
	assert.True(t, st.LastManualOverride.IsZero())
	assert.Equal(t, heating.Levels{3, 0}, st.Commanded)
}

func TestStatesArePublished(t *testing.T) {
	f := newSeats(0, 0)
	c := newController(t, f, heating.DefaultSettings())
	cell := c.States()
	assert.Equal(t, uint64(0), cell.Version())

	c.Evaluate(context.Background(), cabin(0), t0)
	assert.Equal(t, uint64(1), cell.Version())

	s := heating.DefaultSettings()
	s.Threshold = 15
	require.NoError(t, c.UpdateSettings(s))
	assert.InDelta(t, 15.0, cell.Get().Settings.Threshold, 1e-9)

	bad := s
	bad.Level = -1
	require.Error(t, c.UpdateSettings(bad))
	assert.InDelta(t, 15.0, c.Settings().Threshold, 1e-9)
}

func TestRunUsesLatestSnapshot(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	c := newController(t, f, s)

	snaps := telemetry.NewCell(cabin(20))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, snaps, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return c.State().SetupComplete }, time.Second, time.Millisecond)
	snaps.Store(cabin(-1))
	require.Eventually(t, func() bool { return c.State().Commanded == heating.Levels{3, 0} }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestManualChangeAfterAutoOffIsRespected(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	s.Adaptive = false
	s.Level = 2
	s.AutoOffMinutes = 30
	c := newController(t, f, s)
	ctx := context.Background()

	c.Evaluate(ctx, cabin(-10), t0)
	st := c.Evaluate(ctx, cabin(-10), t0.Add(31*time.Minute))
	require.Equal(t, heating.DecisionAutoOff, st.LastDecision)
	require.Equal(t, 0, seatLevel(t, f, catalog.AreaDriver))

	// the driver turns the seat back on
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaDriver, 3)
	st = c.Evaluate(ctx, cabin(-10), t0.Add(32*time.Minute))
	require.Equal(t, heating.DecisionOverride, st.LastDecision)
	assert.False(t, st.AutoOffLatched)

	st = c.Evaluate(ctx, cabin(-10), t0.Add(32*time.Minute+3*time.Second))
	assert.Equal(t, heating.DecisionSilenced, st.LastDecision)
	assert.Equal(t, 3, seatLevel(t, f, catalog.AreaDriver))

	// control resumes after the silence window and the timer starts over
	resumed := t0.Add(38 * time.Minute)
	st = c.Evaluate(ctx, cabin(-10), resumed)
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.Equal(t, 2, seatLevel(t, f, catalog.AreaDriver))
	assert.Equal(t, resumed, st.HeatingActivatedAt)
}

func TestAutoOffCoversSeatsOutsideMode(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeDriver
	s.Adaptive = false
	s.Level = 2
	s.AutoOffMinutes = 30
	c := newController(t, f, s)
	ctx := context.Background()

	c.Evaluate(ctx, cabin(-10), t0)
	f.SetInt(catalog.SeatHeatingLevel, catalog.AreaPassenger, 1)
	st := c.Evaluate(ctx, cabin(-10), t0.Add(time.Minute))
	require.Equal(t, heating.DecisionOverride, st.LastDecision)

	st = c.Evaluate(ctx, cabin(-10), t0.Add(31*time.Minute))
	assert.Equal(t, heating.DecisionAutoOff, st.LastDecision)
	assert.Equal(t, heating.Levels{0, 0}, st.Commanded)
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaDriver))
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaPassenger))
}

func TestModeChangeSwitchesOffDroppedSeats(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	s.Adaptive = false
	s.Level = 3
	s.AutoOffMinutes = 30
	c := newController(t, f, s)
	ctx := context.Background()

	st := c.Evaluate(ctx, cabin(-10), t0)
	require.Equal(t, heating.Levels{3, 3}, st.Commanded)

	f.FailWrites(catalog.SeatHeatingLevel, catalog.AreaPassenger)
	s.Mode = heating.ModeOff
	require.NoError(t, c.UpdateSettings(s))

	st = c.Evaluate(ctx, cabin(-10), t0.Add(time.Minute))
	assert.Equal(t, heating.DecisionDisabled, st.LastDecision)
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaDriver))
	assert.Equal(t, heating.Levels{0, 3}, st.Commanded)

	// the failed seat is retried
	f.Heal(catalog.SeatHeatingLevel, catalog.AreaPassenger)
	st = c.Evaluate(ctx, cabin(-10), t0.Add(2*time.Hour))
	assert.Equal(t, heating.Levels{0, 0}, st.Commanded)
	assert.Equal(t, 0, seatLevel(t, f, catalog.AreaPassenger))
	assert.True(t, st.HeatingActivatedAt.IsZero())
}

func TestNarrowedModeKeepsRemainingSeat(t *testing.T) {
	f := newSeats(0, 0)
	s := heating.DefaultSettings()
	s.Mode = heating.ModeBoth
	s.Adaptive = false
	s.Level = 2
	c := newController(t, f, s)
	ctx := context.Background()

	c.Evaluate(ctx, cabin(-10), t0)

	s.Mode = heating.ModeDriver
	require.NoError(t, c.UpdateSettings(s))
	st := c.Evaluate(ctx, cabin(-10), t0.Add(time.Minute))
	assert.Equal(t, heating.DecisionApplied, st.LastDecision)
	assert.Equal(t, heating.Levels{2, 0}, st.Commanded)
	assert.Equal(t, 2, seatLevel(t, f, catalog.AreaDriver))
}
