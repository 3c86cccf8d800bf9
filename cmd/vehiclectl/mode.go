package main

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/drivemode"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/prefs"
	"github.com/spf13/cobra"
)

func modeCmd() *cobra.Command {
	keys := make([]string, 0, len(catalog.DriveModes))
	for _, m := range catalog.DriveModes {
		keys = append(keys, m.Key())
	}

	return &cobra.Command{
		Use:       "mode [" + strings.Join(keys, "|") + "]",
		Short:     "Show or apply the drive mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			hw, err := newHardware(cfg)
			if err != nil {
				return err
			}
			bridge := newBridge(cfg, hw)
			defer func() { _ = bridge.Release() }()

			registry, err := drivemode.NewRegistry(bridge, cfg.DriveModeConfig())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if len(args) == 0 {
				if _, ok := registry.Sync(ctx, bridge); !ok {
					return errors.New().WithMessage(errors.ErrUnavailable, "drive mode could not be read")
				}
				fmt.Println(registry.Mode())
				return nil
			}

			m := catalog.ModeFromKey(args[0])
			if !m.IsKnown() {
				return errors.New().WithData(drivemode.ErrUnknownMode, args[0])
			}
			if err := registry.Apply(ctx, m); err != nil {
				return err
			}

			store, err := prefs.NewStore(cfg.PrefsConfig(), logger.New("prefs"))
			if err != nil {
				logger.Warn().Err(err).Msg("Preference store unavailable, mode not saved")
			} else {
				defer store.Close()
				if err := store.SaveDriveMode(ctx, m); err != nil {
					logger.Warn().Err(err).Msg("Failed to save drive mode")
				}
			}

			fmt.Println("Drive mode:", registry.Mode())
			return nil
		},
	}
}
