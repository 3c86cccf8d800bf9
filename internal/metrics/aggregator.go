// Package metrics polls the property bridge on a fast and a slow cadence and
// publishes a snapshot whenever the vehicle state changes.
package metrics

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/looplab/fsm"
)

const (
	StateStopped    = "stopped"
	StateMonitoring = "monitoring"

	EventStart = "start"
	EventStop  = "stop"

	// StatusHardwareUnavailable is reported once the property service is
	// known to be absent and polling has been given up.
	StatusHardwareUnavailable = "hardware API not available"
)

// Aggregator owns the polling loop. At most one loop runs at a time.
type Aggregator struct {
	reader property.Reader
	cfg    Config
	log    logger.Logger
	now    func() time.Time
	cell   *telemetry.Cell[telemetry.VehicleSnapshot]

	avgFuel     *guardedProperty
	tripMileage *guardedProperty
	tripTime    *guardedProperty

	mu        sync.Mutex
	lifecycle *fsm.FSM
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithLogger(log logger.Logger) Option {
	return func(a *Aggregator) {
		a.log = log
	}
}

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator returns a stopped aggregator reading through r.
func NewAggregator(r property.Reader, cfg Config, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidConfig, err)
	}

	a := &Aggregator{
		reader: r,
		cfg:    cfg,
		log:    logger.New("metrics"),
		now:    time.Now,

		avgFuel:     newGuardedProperty("average_fuel", catalog.AverageFuel, true, catalog.AreaGlobal, catalog.AreaDriver),
		tripMileage: newGuardedProperty("trip_mileage", catalog.TripMileage, true, catalog.AreaGlobal, catalog.AreaDriver),
		tripTime:    newGuardedProperty("trip_time", catalog.TripTime, false, catalog.AreaGlobal),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cell = telemetry.NewCell(telemetry.NewSnapshot(a.now()))

	a.lifecycle = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: EventStart, Src: []string{StateStopped}, Dst: StateMonitoring},
			{Name: EventStop, Src: []string{StateMonitoring}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_" + StateMonitoring: func(_ context.Context, _ *fsm.Event) {
				monitoring.Set(1)
			},
			"enter_" + StateStopped: func(_ context.Context, _ *fsm.Event) {
				monitoring.Set(0)
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				a.log.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("Aggregator state changed")
			},
		},
	)

	return a, nil
}

// Snapshots returns the cell snapshots are published through.
func (a *Aggregator) Snapshots() *telemetry.Cell[telemetry.VehicleSnapshot] {
	return a.cell
}

// StartMonitoring starts the polling loop. The loop runs until
// StopMonitoring is called or ctx is cancelled. Calling it while a loop is
// active does nothing; a loop that has exited on its own is replaced.
func (a *Aggregator) StartMonitoring(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	errFactory := errors.New()

	if a.lifecycle.Is(StateMonitoring) {
		if a.loopActive() {
			return nil
		}
		a.log.Debug().Msg("Replacing exited polling loop")
		a.stopLocked()
	}

	if err := a.lifecycle.Event(ctx, EventStart); err != nil {
		return errFactory.Wrap(ErrLifecycle, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(loopCtx, a.done)

	a.log.Info().
		Dur("interval", a.cfg.Interval).
		Int("slow_every", a.cfg.SlowEvery).
		Msg("Monitoring started")

	return nil
}

// StopMonitoring cancels the polling loop and waits for it to exit. Nothing
// is published after it returns. It is safe to call more than once.
func (a *Aggregator) StopMonitoring() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.lifecycle.Is(StateMonitoring) {
		return
	}
	a.stopLocked()
	a.log.Info().Msg("Monitoring stopped")
}

func (a *Aggregator) stopLocked() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.cancel = nil
	a.done = nil

	if err := a.lifecycle.Event(context.Background(), EventStop); err != nil {
		a.log.Debug().Err(err).Msg("Unexpected lifecycle transition")
	}
}

func (a *Aggregator) loopActive() bool {
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// IsMonitoring reports whether a polling loop is running.
func (a *Aggregator) IsMonitoring() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lifecycle.Is(StateMonitoring) && a.loopActive()
}

// Status is the user-visible aggregator state.
func (a *Aggregator) Status() string {
	if a.reader.Status() == property.StatusUnavailable {
		return StatusHardwareUnavailable
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lifecycle.Current()
}

// SuppressedProperties lists guarded properties that are no longer read.
func (a *Aggregator) SuppressedProperties() []string {
	var out []string
	for _, g := range []*guardedProperty{a.avgFuel, a.tripMileage, a.tripTime} {
		if !g.Supported() {
			out = append(out, g.name)
		}
	}

	return out
}

// session is the state of one polling loop.
type session struct {
	ticks     uint64
	current   telemetry.VehicleSnapshot
	published *telemetry.VehicleSnapshot
}

func (a *Aggregator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	s := &session{current: telemetry.NewSnapshot(a.now())}

	for {
		if !a.poll(ctx, s) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one tick. It returns false when the loop must exit.
func (a *Aggregator) poll(ctx context.Context, s *session) bool {
	slow := s.ticks%uint64(a.cfg.SlowEvery) == 0
	s.ticks++

	next := s.current
	next.Timestamp = a.now()
	a.readFast(ctx, &next)
	if slow {
		a.readSlow(ctx, &next)
		ticks.WithLabelValues("slow").Inc()
	} else {
		ticks.WithLabelValues("fast").Inc()
	}
	s.current = next

	if a.reader.Status() == property.StatusUnavailable {
		a.log.Warn().Msg("Property service unavailable, polling stopped")
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if s.published != nil && s.published.Equal(next) {
		return true
	}
	a.cell.Store(next)
	s.published = &next
	publishes.Inc()

	return true
}
