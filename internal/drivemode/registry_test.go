package drivemode_test

import (
	"context"
	"sync"
	"testing"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/property/propertytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, f *propertytest.Fake) (*drivemode.Registry, *property.Bridge) {
	t.Helper()
	b := property.NewBridge(f)
	r, err := drivemode.NewRegistry(b, drivemode.DefaultConfig())
	require.NoError(t, err)
	return r, b
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, drivemode.DefaultConfig().Validate())

	_, err := drivemode.NewRegistry(nil, drivemode.Config{Capacity: 0})
	assert.True(t, errors.HasCode(err, drivemode.ErrInvalidConfig))
}

func TestApplyWritesModeCode(t *testing.T) {
	f := propertytest.NewFake()
	r, _ := newRegistry(t, f)
	assert.Equal(t, "Unknown", r.Mode())

	require.NoError(t, r.Apply(context.Background(), catalog.ModeSport))
	assert.Equal(t, "Sport", r.Mode())

	writes := f.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, catalog.DriveModeFunction, writes[0].Address.ID)
	assert.Equal(t, 3, writes[0].Value)
	assert.Equal(t, []string{"Applied drive mode Sport", "Drive mode: Sport"}, r.Lines())
	assert.Equal(t, uint64(1), r.Modes().Version())
}

func TestApplyFailureKeepsMode(t *testing.T) {
	f := propertytest.NewFake()
	r, _ := newRegistry(t, f)
	require.NoError(t, r.Apply(context.Background(), catalog.ModeEco))

	f.FailWrites(catalog.DriveModeFunction, catalog.AreaGlobal)
	err := r.Apply(context.Background(), catalog.ModeSport)
	assert.True(t, errors.HasCode(err, drivemode.ErrApply))
	assert.Equal(t, "Eco", r.Mode())
	assert.Equal(t, "Failed to apply drive mode Sport", r.Tail(1)[0])
}

func TestApplyRejectsUnknown(t *testing.T) {
	f := propertytest.NewFake()
	r, _ := newRegistry(t, f)

	err := r.Apply(context.Background(), catalog.ModeFromKey("warp"))
	assert.True(t, errors.HasCode(err, drivemode.ErrUnknownMode))
	assert.Empty(t, f.Writes())
}

func TestSyncReadsActiveMode(t *testing.T) {
	f := propertytest.NewFake()
	f.SetInt(catalog.DriveModeFunction, catalog.AreaGlobal, catalog.ModeAdaptive.Code())
	r, b := newRegistry(t, f)

	m, ok := r.Sync(context.Background(), b)
	require.True(t, ok)
	assert.Equal(t, catalog.ModeAdaptive, m)
	assert.Equal(t, "Adaptive", r.Mode())

	// unchanged readings do not grow the log
	r.Sync(context.Background(), b)
	r.Sync(context.Background(), b)
	assert.Len(t, r.Lines(), 1)

	f.SetInt(catalog.DriveModeFunction, catalog.AreaGlobal, 42)
	m, ok = r.Sync(context.Background(), b)
	require.True(t, ok)
	assert.Equal(t, catalog.ModeUnknown, m)
	assert.Equal(t, "Unknown", r.Mode())
}

func TestSetModeAndRecord(t *testing.T) {
	r, err := drivemode.NewRegistry(nil, drivemode.DefaultConfig())
	require.NoError(t, err)

	r.SetMode("Track")
	r.Record("custom line")
	assert.Equal(t, "Track", r.Mode())
	assert.Equal(t, []string{"Drive mode: Track", "custom line"}, r.Tail(2))

	// without a writer nothing can be applied
	assert.Error(t, r.Apply(context.Background(), catalog.ModeEco))
}

func TestConcurrentSetModeLogsOnce(t *testing.T) {
	r, err := drivemode.NewRegistry(nil, drivemode.DefaultConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SetMode("Sport")
		}()
	}
	wg.Wait()

	entries := r.Entries(0)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Count)
	assert.Equal(t, uint64(1), r.Modes().Version())
}

func TestApplyAndSyncKeepLabelInStep(t *testing.T) {
	f := propertytest.NewFake()
	f.SetInt(catalog.DriveModeFunction, catalog.AreaGlobal, catalog.ModeComfort.Code())
	r, b := newRegistry(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			r.Sync(ctx, b)
		}
	}()
	go func() {
		defer wg.Done()
		require.NoError(t, r.Apply(ctx, catalog.ModeSport))
	}()
	wg.Wait()

	// once the write has landed every later read agrees with it
	r.Sync(ctx, b)
	assert.Equal(t, "Sport", r.Mode())
}
