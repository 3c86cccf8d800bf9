package ignition

import (
	"context"
	"sync"

	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

var transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vehiclectl_ignition_transitions_total",
		Help: "Detected ignition transitions by kind (startup, shutdown).",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(transitions)
}

// Handler is called for every startup or shutdown.
type Handler func(Transition)

// Monitor feeds samples through Detect, keeping only the previous one.
type Monitor struct {
	log  logger.Logger
	cell *telemetry.Cell[State]

	mu       sync.Mutex
	prev     State
	hasPrev  bool
	handlers []Handler
}

func NewMonitor(log logger.Logger) *Monitor {
	if log == nil {
		log = logger.New("ignition")
	}

	return &Monitor{
		log:  log,
		cell: telemetry.NewCell(State{}),
	}
}

// States publishes every sample whose raw code differs from the previous
// one. Version 0 means nothing has been observed.
func (m *Monitor) States() *telemetry.Cell[State] {
	return m.cell
}

// OnTransition registers h. Handlers run on the observing goroutine.
func (m *Monitor) OnTransition(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Observe records cur and returns the transition from the previous sample.
// The first sample never produces a transition.
func (m *Monitor) Observe(cur State) Transition {
	m.mu.Lock()
	prev, hasPrev := m.prev, m.hasPrev
	m.prev, m.hasPrev = cur, true
	handlers := append([]Handler(nil), m.handlers...)
	m.mu.Unlock()

	if !hasPrev {
		m.cell.Store(cur)
		return Transition{To: cur}
	}
	if prev.Raw != cur.Raw {
		m.cell.Store(cur)
	}

	t := Detect(prev, cur)
	if !t.HasTransition {
		return t
	}

	kind := "shutdown"
	if t.IsStartup {
		kind = "startup"
	}
	transitions.WithLabelValues(kind).Inc()
	m.log.Info().
		Str("from", prev.Label()).
		Str("to", cur.Label()).
		Str("kind", kind).
		Msg("Ignition transition")

	for _, h := range handlers {
		h(t)
	}

	return t
}

// ObserveSnapshot samples the power state carried by a snapshot. Snapshots
// without one are ignored.
func (m *Monitor) ObserveSnapshot(snap telemetry.VehicleSnapshot) {
	raw, ok := snap.PowerState.Get()
	if !ok {
		return
	}
	m.Observe(State{Raw: raw, Timestamp: snap.Timestamp})
}

// Run observes every snapshot published on src, in order and without
// skipping any, until ctx is done.
func (m *Monitor) Run(ctx context.Context, src *telemetry.Cell[telemetry.VehicleSnapshot]) {
	sub, snap, ver := src.Subscribe()
	defer sub.Close()

	if ver > 0 {
		m.ObserveSnapshot(snap)
	}

	for {
		snap, _, err := sub.Next(ctx)
		if err != nil {
			return
		}
		m.ObserveSnapshot(snap)
	}
}
