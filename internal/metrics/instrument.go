package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehiclectl_aggregator_ticks_total",
			Help: "Polling ticks by tier (fast, slow).",
		},
		[]string{"tier"},
	)

	publishes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehiclectl_snapshot_publishes_total",
			Help: "Snapshots published after a change was detected.",
		},
	)

	suppressed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehiclectl_suppressed_properties",
			Help: "Guarded properties disabled after a failed read.",
		},
	)

	monitoring = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehiclectl_aggregator_monitoring",
			Help: "1 while the polling loop is running.",
		},
	)
)

func init() {
	prometheus.MustRegister(ticks, publishes, suppressed, monitoring)
}
