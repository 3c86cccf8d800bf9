package main

import (
	"context"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/api"
	"codeberg.org/mutker/vehiclectl/internal/config"
	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/ignition"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/metrics"
	"codeberg.org/mutker/vehiclectl/internal/prefs"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/property/sim"
	"codeberg.org/mutker/vehiclectl/internal/publish"
	"golang.org/x/sync/errgroup"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg *config.Config
	log logger.Logger

	bridge     *property.Bridge
	aggregator *metrics.Aggregator
	monitor    *ignition.Monitor
	heating    *heating.Controller
	registry   *drivemode.Registry
	store      prefs.Store
}

func newHardware(cfg *config.Config) (property.Hardware, error) {
	switch cfg.Hardware.Backend {
	case config.BackendSim:
		return sim.New(), nil
	default:
		return nil, errors.New().WithData(errors.ErrHardwareBackend, cfg.Hardware.Backend)
	}
}

func newBridge(cfg *config.Config, hw property.Hardware) *property.Bridge {
	return property.NewBridge(hw,
		property.WithCallTimeout(cfg.Bridge.CallTimeout),
		property.WithLogger(logger.New("property")),
	)
}

// newApp builds the component graph over hw. Saved preferences take
// precedence over the configured heating settings.
func newApp(ctx context.Context, cfg *config.Config, hw property.Hardware, store prefs.Store) (*app, error) {
	errFactory := errors.New()

	a := &app{
		cfg:    cfg,
		log:    logger.New("app"),
		bridge: newBridge(cfg, hw),
		store:  store,
	}

	mcfg, err := cfg.MetricsConfig()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	a.aggregator, err = metrics.NewAggregator(a.bridge, mcfg, metrics.WithLogger(logger.New("metrics")))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	settings, err := cfg.HeatingSettings()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	if saved, ok, err := store.LoadHeating(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to load saved heating settings, using configuration")
	} else if ok {
		a.log.Info().Msg("Using saved heating settings")
		settings = saved
	}
	a.heating, err = heating.NewController(a.bridge, settings, heating.WithLogger(logger.New("heating")))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.registry, err = drivemode.NewRegistry(a.bridge, cfg.DriveModeConfig(), drivemode.WithLogger(logger.New("drivemode")))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.monitor = ignition.NewMonitor(logger.New("ignition"))
	a.monitor.OnTransition(a.onIgnition)

	return a, nil
}

func (a *app) onIgnition(t ignition.Transition) {
	switch {
	case t.IsStartup:
		a.heating.Reset()
		a.registry.Record("Ignition on")
	case t.IsShutdown:
		a.registry.Record("Ignition off")
	}
}

// restoreDriveMode re-applies the last mode saved by a user.
func (a *app) restoreDriveMode(ctx context.Context) {
	m, ok, err := a.store.LoadDriveMode(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to load saved drive mode")
		return
	}
	if !ok {
		return
	}
	if err := a.registry.Apply(ctx, m); err != nil {
		a.log.Warn().Err(err).Str("mode", m.Key()).Msg("Failed to restore drive mode")
	}
}

// applyConfig hot-applies a reloaded configuration. Only heating settings
// change at runtime; everything else needs a restart.
func (a *app) applyConfig(cfg *config.Config) {
	settings, err := cfg.HeatingSettings()
	if err != nil {
		a.log.Warn().Err(err).Msg("Ignoring invalid heating settings")
		return
	}
	if settings == a.heating.Settings() {
		return
	}
	if err := a.heating.UpdateSettings(settings); err != nil {
		a.log.Warn().Err(err).Msg("Failed to apply heating settings")
	}
}

func (a *app) server() *api.Server {
	return api.NewServer(api.Deps{
		Bridge:     a.bridge,
		Aggregator: a.aggregator,
		Ignition:   a.monitor.States(),
		Heating:    a.heating,
		DriveModes: a.registry,
		Prefs:      a.store,
		Log:        logger.New("api"),
	})
}

// run starts monitoring and every consumer, and blocks until ctx is done
// or a component fails.
func (a *app) run(ctx context.Context) error {
	errFactory := errors.New()

	if !a.bridge.Initialize(ctx) {
		a.log.Warn().Str("status", string(a.bridge.Status())).Msg("Property service not ready, will retry on first read")
	}
	a.restoreDriveMode(ctx)

	if err := a.aggregator.StartMonitoring(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}
	defer a.aggregator.StopMonitoring()

	snapshots := a.aggregator.Snapshots()
	slow := a.cfg.SlowInterval()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.monitor.Run(gctx, snapshots)
		return nil
	})
	g.Go(func() error {
		a.heating.Run(gctx, snapshots, slow)
		return nil
	})
	g.Go(func() error {
		a.registry.Sync(gctx, a.bridge)
		a.registry.Run(gctx, a.bridge, slow)
		return nil
	})

	if addr := a.cfg.API.Listen; addr != "" {
		srv := a.server()
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})
	}

	if a.cfg.MQTT.Enabled {
		g.Go(func() error {
			client, err := publish.Connect(gctx, a.cfg.PublishConfig(), logger.New("mqtt"))
			if err != nil {
				return errFactory.Wrap(errors.ErrMainLoop, err)
			}
			sink := publish.NewSink(client, a.cfg.MQTT.Topic, logger.New("publish"))
			err = sink.Run(gctx, snapshots, a.monitor.States())
			if derr := client.Disconnect(context.Background()); derr != nil {
				a.log.Warn().Err(derr).Msg("MQTT disconnect failed")
			}
			return err
		})
	}

	a.log.Info().
		Dur("interval", time.Duration(a.cfg.Interval)*time.Millisecond).
		Dur("slow_interval", slow).
		Str("backend", a.cfg.Hardware.Backend).
		Msg("Monitoring started")

	return g.Wait()
}

// close releases the hardware and the preference store.
func (a *app) close() error {
	var firstErr error
	if err := a.bridge.Release(); err != nil {
		a.log.ErrorWithCode(errors.New().Wrap(errors.ErrShutdownFailed, err)).Msg("Failed to release property service")
		firstErr = err
	}
	if err := a.store.Close(); err != nil {
		a.log.ErrorWithCode(errors.New().Wrap(errors.ErrClosePrefs, err)).Msg("Failed to close preference store")
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
