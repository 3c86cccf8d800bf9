package property

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK      = "ok"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	// propertyCalls counts physical calls by operation and outcome.
	// "skipped" means the bridge was not ready and no call was made.
	propertyCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehiclectl_property_calls_total",
			Help: "Property service calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	bridgeInits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehiclectl_property_bridge_initializations_total",
			Help: "Property bridge initialization attempts by outcome (ready, failed, unavailable).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(propertyCalls, bridgeInits)
}
