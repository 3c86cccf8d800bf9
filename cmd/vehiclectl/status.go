package main

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/metrics"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

const statusTimeout = 5 * time.Second

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read one snapshot and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			mcfg, err := cfg.MetricsConfig()
			if err != nil {
				return err
			}
			agg, err := metrics.NewAggregator(bridge, mcfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			snap, err := readOnce(ctx, agg)
			if err != nil {
				return errors.New().Wrap(errors.ErrUnavailable, err).WithMessage(agg.Status())
			}

			fmt.Println(statusTable(snap, agg.SuppressedProperties()))
			return nil
		},
	}
}

// readOnce starts the aggregator and returns its first snapshot.
func readOnce(ctx context.Context, agg *metrics.Aggregator) (telemetry.VehicleSnapshot, error) {
	if err := agg.StartMonitoring(ctx); err != nil {
		return telemetry.VehicleSnapshot{}, err
	}
	defer agg.StopMonitoring()

	snap, _, err := agg.Snapshots().Wait(ctx, 0)
	return snap, err
}

func statusTable(s telemetry.VehicleSnapshot, suppressed []string) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60

	table.AddRow("FIELD", "VALUE")
	table.AddRow("Time", s.Timestamp.Format(time.RFC3339))
	table.AddRow("Speed", fmt.Sprintf("%d km/h", s.Speed))
	table.AddRow("RPM", s.RPM)
	table.AddRow("Gear", s.Gear)
	table.AddRow("Power state", optString(s.PowerState, "%d"))
	table.AddRow("Cabin", optString(s.CabinTemp, "%.1f °C"))
	table.AddRow("Ambient", optString(s.AmbientTemp, "%.1f °C"))
	table.AddRow("Coolant", optString(s.CoolantTemp, "%.1f °C"))
	table.AddRow("Oil", optString(s.OilTemp, "%.1f °C"))

	if fuel, ok := s.Fuel.Get(); ok {
		table.AddRow("Fuel range", optString(fuel.RangeKm, "%d km"))
		table.AddRow("Fuel", optString(fuel.Liters, "%.1f l"))
		table.AddRow("Tank", optString(fuel.CapacityLiters, "%.1f l"))
	} else {
		table.AddRow("Fuel", "-")
	}

	table.AddRow("Odometer", optString(s.OdometerKm, "%d km"))
	table.AddRow("Trip", optString(s.TripDistanceKm, "%.1f km"))
	table.AddRow("Trip time", optString(s.TripTimeMin, "%d min"))

	for _, w := range catalog.Wheels {
		t := s.Tire(w)
		row := fmt.Sprintf("%s, %s", optString(t.PressureKPa, "%d kPa"), optString(t.TemperatureC, "%d °C"))
		if st, ok := t.Status(); ok {
			row += " (" + st.String() + ")"
		}
		table.AddRow("Tire "+w.String(), row)
	}

	table.AddRow("Battery", optString(s.BatteryLevel, "%d %%"))
	table.AddRow("Air quality", optString(s.AirQuality, "%d"))
	table.AddRow("Night mode", optString(s.NightMode, "%t"))
	table.AddRow("Service due", fmt.Sprintf("%s / %s",
		optString(s.ServiceDueDays, "%d days"), optString(s.ServiceDueKm, "%d km")))

	if len(suppressed) > 0 {
		table.AddRow("Suppressed", fmt.Sprint(suppressed))
	}

	return table
}

func optString[T comparable](o telemetry.Opt[T], format string) string {
	v, ok := o.Get()
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
