// Package config loads vehiclectl settings from a TOML file, the
// environment and command-line flags.
package config

import (
	"context"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/metrics"
	"codeberg.org/mutker/vehiclectl/internal/prefs"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/publish"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "/etc/vehiclectl.toml"
	DefaultEnvPrefix  = "VEHICLECTL"
	ConfigEnvVar      = "VEHICLECTL_CONFIG"
	DefaultLogLevel   = LogLevelInfo
	DefaultPIDFile    = "/run/vehiclectl.pid"
	BackendSim        = "sim"
)

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	// Interval is the fast polling interval in milliseconds.
	Interval  int             `mapstructure:"interval"`
	SlowEvery int             `mapstructure:"slow_every"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Heating   HeatingConfig   `mapstructure:"heating"`
	Fuel      FuelConfig      `mapstructure:"fuel"`
	DriveMode DriveModeConfig `mapstructure:"drivemode"`
	Prefs     PrefsConfig     `mapstructure:"prefs"`
	API       APIConfig       `mapstructure:"api"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	PIDFile   string          `mapstructure:"pid_file"`
}

type BridgeConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type HeatingConfig struct {
	Mode           string        `mapstructure:"mode"`
	Adaptive       bool          `mapstructure:"adaptive"`
	Level          int           `mapstructure:"level"`
	Threshold      float64       `mapstructure:"threshold"`
	AutoOffMinutes int           `mapstructure:"auto_off_minutes"`
	Source         string        `mapstructure:"source"`
	SilenceWindow  time.Duration `mapstructure:"silence_window"`
}

type FuelConfig struct {
	CapacityLiters float64 `mapstructure:"capacity_liters"`
	LevelEnabled   bool    `mapstructure:"level_enabled"`
	LevelProperty  int     `mapstructure:"level_property"`
	LevelArea      int     `mapstructure:"level_area"`
	LevelScale     float64 `mapstructure:"level_scale"`
}

type DriveModeConfig struct {
	LogCapacity    int           `mapstructure:"log_capacity"`
	CollapseWindow time.Duration `mapstructure:"collapse_window"`
}

type PrefsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type APIConfig struct {
	// Listen is the HTTP listen address. Empty disables the API.
	Listen string `mapstructure:"listen"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

type HardwareConfig struct {
	Backend string `mapstructure:"backend"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"interval":   "interval",
	"backend":    "hardware.backend",
	"api-listen": "api.listen",
	"pid-file":   "pid_file",
}

func setDefaults(v *viper.Viper) {
	fuel := catalog.DefaultFuelLevelMapping()
	dm := drivemode.DefaultConfig()
	hs := heating.DefaultSettings()

	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("interval", int(metrics.DefaultInterval/time.Millisecond))
	v.SetDefault("slow_every", metrics.DefaultSlowEvery)
	v.SetDefault("bridge.call_timeout", property.DefaultCallTimeout)

	v.SetDefault("heating.mode", string(hs.Mode))
	v.SetDefault("heating.adaptive", hs.Adaptive)
	v.SetDefault("heating.level", hs.Level)
	v.SetDefault("heating.threshold", hs.Threshold)
	v.SetDefault("heating.auto_off_minutes", hs.AutoOffMinutes)
	v.SetDefault("heating.source", string(hs.Source))
	v.SetDefault("heating.silence_window", hs.SilenceWindow)

	v.SetDefault("fuel.capacity_liters", 0.0)
	v.SetDefault("fuel.level_enabled", fuel.Enabled)
	v.SetDefault("fuel.level_property", int(fuel.Property))
	v.SetDefault("fuel.level_area", int(fuel.Area))
	v.SetDefault("fuel.level_scale", fuel.Scale)

	v.SetDefault("drivemode.log_capacity", dm.Capacity)
	v.SetDefault("drivemode.collapse_window", dm.CollapseWindow)

	v.SetDefault("prefs.enabled", prefs.DefaultConfig().Enabled)
	v.SetDefault("prefs.db_path", prefs.DefaultConfig().DBPath)

	v.SetDefault("api.listen", "127.0.0.1:8089")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "mqtt://127.0.0.1:1883")
	v.SetDefault("mqtt.client_id", "vehiclectl")
	v.SetDefault("mqtt.topic", "vehiclectl")

	v.SetDefault("hardware.backend", BackendSim)
	v.SetDefault("pid_file", DefaultPIDFile)
}

// Loader reads configuration into a Config. It keeps its own viper
// instance so it can be watched for changes.
type Loader struct {
	v        *viper.Viper
	fileUsed bool
}

func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)

	return &Loader{v: v}
}

// BindFlags binds every known flag present in fs. Flags take precedence
// over the file and the environment once set.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return errors.New().Wrap(errors.ErrBindFlags, err).WithData(name)
		}
	}

	return nil
}

// Load reads the file, the environment and bound flags, then validates.
func (l *Loader) Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	l.v.SetEnvPrefix(o.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	explicit := true
	path := o.configPath
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path == "" {
		path = DefaultConfigPath
		explicit = false
	}

	l.v.SetConfigFile(path)
	l.v.SetConfigType("toml")
	l.fileUsed = false

	if _, err := os.Stat(path); err == nil {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(path)
		}
		l.fileUsed = true
	} else if explicit {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(path)
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	errFactory := errors.New()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigFile returns the file in use, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	if !l.fileUsed {
		return ""
	}
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the file
// changes. Invalid edits are logged and skipped. Watching stops having an
// effect once ctx is done.
func (l *Loader) Watch(ctx context.Context, log logger.Logger, fn func(*Config)) error {
	if !l.fileUsed {
		log.Debug().Msg("No configuration file in use, not watching")
		return nil
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil || !e.Has(fsnotify.Write|fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid configuration change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Configuration reloaded")
		fn(cfg)
	})
	l.v.WatchConfig()

	return nil
}

// Validate checks every value Load cannot check by type alone.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if _, err := c.MetricsConfig(); err != nil {
		return err
	}
	if c.Bridge.CallTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "bridge.call_timeout must be positive")
	}
	if _, err := c.HeatingSettings(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := c.DriveModeConfig().Validate(); err != nil {
		return err
	}
	if err := c.PrefsConfig().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return errFactory.WithData(errors.ErrMissingConfig, "mqtt.broker and mqtt.topic are required")
	}
	if c.Hardware.Backend != BackendSim {
		return errFactory.WithData(errors.ErrHardwareBackend, c.Hardware.Backend)
	}

	return nil
}

// MetricsConfig returns the aggregator configuration.
func (c *Config) MetricsConfig() (metrics.Config, error) {
	cfg := metrics.Config{
		Interval:           time.Duration(c.Interval) * time.Millisecond,
		SlowEvery:          c.SlowEvery,
		FuelCapacityLiters: c.Fuel.CapacityLiters,
		FuelLevel: catalog.FuelLevelMapping{
			Enabled:  c.Fuel.LevelEnabled,
			Property: catalog.PropertyID(c.Fuel.LevelProperty),
			Area:     catalog.AreaID(c.Fuel.LevelArea),
			Scale:    c.Fuel.LevelScale,
		},
	}

	return cfg, cfg.Validate()
}

// SlowInterval is the period of slow reads, which heating follows.
func (c *Config) SlowInterval() time.Duration {
	return time.Duration(c.Interval*c.SlowEvery) * time.Millisecond
}

// HeatingSettings returns the configured heating preferences.
func (c *Config) HeatingSettings() (heating.Settings, error) {
	mode, err := heating.ParseMode(c.Heating.Mode)
	if err != nil {
		return heating.Settings{}, err
	}
	source, err := heating.ParseSource(c.Heating.Source)
	if err != nil {
		return heating.Settings{}, err
	}

	s := heating.Settings{
		Mode:           mode,
		Adaptive:       c.Heating.Adaptive,
		Level:          c.Heating.Level,
		Threshold:      c.Heating.Threshold,
		AutoOffMinutes: c.Heating.AutoOffMinutes,
		Source:         source,
		SilenceWindow:  c.Heating.SilenceWindow,
	}

	return s, s.Validate()
}

func (c *Config) DriveModeConfig() drivemode.Config {
	return drivemode.Config{
		Capacity:       c.DriveMode.LogCapacity,
		CollapseWindow: c.DriveMode.CollapseWindow,
	}
}

func (c *Config) PrefsConfig() prefs.Config {
	return prefs.Config{
		Enabled: c.Prefs.Enabled,
		DBPath:  c.Prefs.DBPath,
	}
}

func (c *Config) PublishConfig() publish.Config {
	return publish.Config{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Topic:    c.MQTT.Topic,
	}
}
