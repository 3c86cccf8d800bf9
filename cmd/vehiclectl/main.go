package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/vehiclectl/internal/config"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vehiclectl",
		Short: "Vehicle telemetry and comfort control daemon",
		Long: `vehiclectl polls the head unit's property service, publishes consistent
vehicle snapshots, and drives seat heating and drive-mode control from them.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warning, error)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(modeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration with cmd's flags bound on top and
// initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return nil, nil, err
	}

	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigFile(configPath))
	}

	cfg, err := loader.Load(opts...)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		return nil, nil, err
	}
	if file := loader.ConfigFile(); file != "" {
		logger.Debug().Str("file", file).Msg("Config loaded")
	} else {
		logger.Debug().Msg("No config file found, using defaults")
	}

	return cfg, loader, nil
}
