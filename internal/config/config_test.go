package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/config"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level = "debug"
interval = 250
slow_every = 4

[bridge]
call_timeout = "100ms"

[heating]
mode = "both"
adaptive = false
level = 3
threshold = 8.5
auto_off_minutes = 20
source = "ambient"
silence_window = "2m"

[fuel]
capacity_liters = 52.0
level_property = 4866
level_scale = 0.1

[drivemode]
log_capacity = 100
collapse_window = "5s"

[prefs]
enabled = true
db_path = "/tmp/vehiclectl-test/prefs.db"

[mqtt]
enabled = true
broker = "mqtt://broker.local:1883"
topic = "car/one"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vehiclectl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv(config.ConfigEnvVar, path)

	l := config.NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, path, l.ConfigFile())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250, cfg.Interval)
	assert.Equal(t, 4, cfg.SlowEvery)
	assert.Equal(t, time.Second, cfg.SlowInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.Bridge.CallTimeout)
	assert.Equal(t, 100, cfg.DriveMode.LogCapacity)
	assert.Equal(t, 5*time.Second, cfg.DriveMode.CollapseWindow)
	assert.True(t, cfg.Prefs.Enabled)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "car/one", cfg.MQTT.Topic)
	assert.Equal(t, "vehiclectl", cfg.MQTT.ClientID)

	hs, err := cfg.HeatingSettings()
	require.NoError(t, err)
	assert.Equal(t, heating.Settings{
		Mode:           heating.ModeBoth,
		Adaptive:       false,
		Level:          3,
		Threshold:      8.5,
		AutoOffMinutes: 20,
		Source:         heating.SourceAmbient,
		SilenceWindow:  2 * time.Minute,
	}, hs)

	mc, err := cfg.MetricsConfig()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, mc.Interval)
	assert.InDelta(t, 52.0, mc.FuelCapacityLiters, 1e-9)
	assert.Equal(t, catalog.PropertyID(4866), mc.FuelLevel.Property)
	assert.True(t, mc.FuelLevel.Enabled)
	assert.InDelta(t, 0.1, mc.FuelLevel.Scale, 1e-9)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(config.ConfigEnvVar, "")

	cfg, err := config.NewLoader().Load(config.WithConfigFile(""))
	require.NoError(t, err)

	assert.Equal(t, string(config.DefaultLogLevel), cfg.LogLevel)
	assert.Equal(t, 500, cfg.Interval)
	assert.Equal(t, 6, cfg.SlowEvery)
	assert.Equal(t, 3*time.Second, cfg.SlowInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.CallTimeout)
	assert.Equal(t, 500, cfg.DriveMode.LogCapacity)
	assert.Equal(t, 2*time.Second, cfg.DriveMode.CollapseWindow)
	assert.Equal(t, config.BackendSim, cfg.Hardware.Backend)
	assert.False(t, cfg.Prefs.Enabled)
	assert.False(t, cfg.MQTT.Enabled)

	hs, err := cfg.HeatingSettings()
	require.NoError(t, err)
	assert.Equal(t, heating.DefaultSettings(), hs)

	mc, err := cfg.MetricsConfig()
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultFuelLevelMapping(), mc.FuelLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.NewLoader().Load(config.WithConfigFile(filepath.Join(t.TempDir(), "nope.toml")))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, "This is not a valid TOML file")
	_, err := config.NewLoader().Load(config.WithConfigFile(path))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("VEHICLECTL_INTERVAL", "1000")
	t.Setenv("VEHICLECTL_HEATING_MODE", "driver")

	cfg, err := config.NewLoader().Load(config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Interval)
	assert.Equal(t, "driver", cfg.Heating.Mode)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Int("interval", 500, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--interval=750"}))

	l := config.NewLoader()
	require.NoError(t, l.BindFlags(fs))
	cfg, err := l.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, 750, cfg.Interval)
	// unset flags do not mask the file
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		toml string
		code errors.ErrorCode
	}{
		{name: "log level", toml: `log_level = "loud"`, code: errors.ErrInvalidLogLevel},
		{name: "interval", toml: `interval = 0`, code: errors.ErrInvalidInterval},
		{name: "heating mode", toml: "[heating]\nmode = \"rear\"", code: heating.ErrInvalidMode},
		{name: "heating level", toml: "[heating]\nlevel = 7", code: heating.ErrInvalidLevel},
		{name: "log capacity", toml: "[drivemode]\nlog_capacity = 0", code: errors.ErrInvalidConfig},
		{name: "mqtt broker", toml: "[mqtt]\nenabled = true\nbroker = \"\"", code: errors.ErrMissingConfig},
		{name: "backend", toml: "[hardware]\nbackend = \"vendor\"", code: errors.ErrHardwareBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.toml)
			_, err := config.NewLoader().Load(config.WithConfigFile(path))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "[heating]\nthreshold = 10.0\n")

	l := config.NewLoader()
	_, err := l.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	var threshold atomic.Value
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx, logger.New("test"), func(cfg *config.Config) {
		threshold.Store(cfg.Heating.Threshold)
	}))

	require.NoError(t, os.WriteFile(path, []byte("[heating]\nthreshold = 4.0\n"), 0o600))
	require.Eventually(t, func() bool {
		v, ok := threshold.Load().(float64)
		return ok && v == 4.0
	}, 5*time.Second, 20*time.Millisecond)
}
