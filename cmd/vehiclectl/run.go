package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/vehiclectl/internal/config"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/pid"
	"codeberg.org/mutker/vehiclectl/internal/prefs"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the telemetry and control daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, loader)
		},
	}

	cmd.Flags().Int("interval", 0, "Fast polling interval in milliseconds")
	cmd.Flags().String("backend", "", "Hardware backend (sim)")
	cmd.Flags().String("api-listen", "", "HTTP listen address, empty to disable")
	cmd.Flags().String("pid-file", "", "PID file path (default "+config.DefaultPIDFile+")")

	return cmd
}

func runDaemon(parent context.Context, cfg *config.Config, loader *config.Loader) error {
	errFactory := errors.New()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go handleSignals(ctx, cancel)

	if err := pid.Write(cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	hw, err := newHardware(cfg)
	if err != nil {
		return err
	}
	store, err := prefs.NewStore(cfg.PrefsConfig(), logger.New("prefs"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitPrefs, err)
	}

	a, err := newApp(ctx, cfg, hw, store)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer cleanup(a)

	if err := loader.Watch(ctx, logger.New("config"), a.applyConfig); err != nil {
		logger.Warn().Err(err).Msg("Failed to watch configuration")
	}

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
		return err
	}

	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

func cleanup(a *app) {
	_ = a.close()
	logger.Info().Msg("Exiting...")
}
