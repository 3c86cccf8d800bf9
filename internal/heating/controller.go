// Package heating drives the seat heaters from a fixed level or from the
// cabin or ambient temperature, backing off after a manual change.
package heating

import (
	"context"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// Decision records what the last evaluation did.
type Decision string

const (
	DecisionNone          Decision = ""
	DecisionReadFailed    Decision = "read_failed"
	DecisionOverride      Decision = "manual_override"
	DecisionSilenced      Decision = "silenced"
	DecisionAutoOff       Decision = "auto_off"
	DecisionDisabled      Decision = "disabled"
	DecisionNoTemperature Decision = "no_temperature"
	DecisionApplied       Decision = "applied"
)

var (
	seatWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehiclectl_heating_writes_total",
			Help: "Seat heating writes by result.",
		},
		[]string{"result"},
	)

	overrides = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehiclectl_heating_manual_overrides_total",
			Help: "Manual seat heating changes detected.",
		},
	)
)

func init() {
	prometheus.MustRegister(seatWrites, overrides)
}

// SeatIO is the part of the property bridge the controller uses.
type SeatIO interface {
	ReadInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, bool)
	WriteInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) bool
}

// State is the controller's view of the seat heaters.
type State struct {
	Settings Settings `json:"settings"`
	// Commanded are the levels last confirmed by a successful write, or
	// adopted from the hardware.
	Commanded Levels `json:"commanded"`
	Observed  Levels `json:"observed"`
	// ManualLevels and LastManualOverride describe the last change made by
	// someone other than the controller.
	ManualLevels       Levels    `json:"manual_levels"`
	LastManualOverride time.Time `json:"last_manual_override"`
	SetupComplete      bool      `json:"setup_complete"`
	HeatingActivatedAt time.Time `json:"heating_activated_at"`
	AutoOffLatched     bool      `json:"auto_off_latched"`
	LastDecision       Decision  `json:"last_decision"`
	EvaluatedAt        time.Time `json:"evaluated_at"`
}

// Silenced reports whether automatic control is suppressed at now.
func (s State) Silenced(now time.Time) bool {
	if s.LastManualOverride.IsZero() {
		return false
	}
	return now.Sub(s.LastManualOverride) < s.Settings.SilenceWindow
}

// Controller evaluates the heating rules once per call to Evaluate.
type Controller struct {
	io   SeatIO
	log  logger.Logger
	now  func() time.Time
	cell *telemetry.Cell[State]

	mu sync.Mutex
	st State
	// released are seats dropped from the mode by a settings change that
	// still have to be switched off.
	released []Seat
}

type Option func(*Controller)

func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithClock sets the clock Run evaluates with.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func NewController(io SeatIO, settings Settings, opts ...Option) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		io:  io,
		log: logger.New("heating"),
		now: time.Now,
		st:  State{Settings: settings},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cell = telemetry.NewCell(c.st)

	return c, nil
}

// States publishes the state after every evaluation and settings change.
func (c *Controller) States() *telemetry.Cell[State] {
	return c.cell
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Settings
}

// UpdateSettings replaces the settings and clears a latched auto-off. Seats
// the new mode no longer controls are switched off on the next evaluation.
func (c *Controller) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := s.Mode.Seats()
	c.released = slices.DeleteFunc(c.released, func(seat Seat) bool {
		return slices.Contains(kept, seat)
	})
	for _, seat := range c.st.Settings.Mode.Seats() {
		if !slices.Contains(kept, seat) && !slices.Contains(c.released, seat) {
			c.released = append(c.released, seat)
		}
	}
	c.st.Settings = s
	c.st.AutoOffLatched = false
	c.cell.Store(c.st)

	c.log.Info().
		Str("mode", string(s.Mode)).
		Bool("adaptive", s.Adaptive).
		Int("level", s.Level).
		Float64("threshold", s.Threshold).
		Int("auto_off_minutes", s.AutoOffMinutes).
		Str("source", string(s.Source)).
		Msg("Heating settings updated")

	return nil
}

// Reset forgets everything learned from the hardware. The next evaluation
// takes a fresh baseline. It is called when the engine starts.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st = State{Settings: c.st.Settings}
	c.released = nil
	c.cell.Store(c.st)
	c.log.Debug().Msg("Heating state reset")
}

// Evaluate runs one control step against snap.
func (c *Controller) Evaluate(ctx context.Context, snap telemetry.VehicleSnapshot, now time.Time) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st.LastDecision = c.evaluate(ctx, snap, now)
	c.st.EvaluatedAt = now
	c.cell.Store(c.st)

	return c.st
}

func (c *Controller) evaluate(ctx context.Context, snap telemetry.VehicleSnapshot, now time.Time) Decision {
	st := &c.st
	set := st.Settings

	observed, ok := c.readLevels(ctx)
	if !ok {
		return DecisionReadFailed
	}
	st.Observed = observed

	if !st.SetupComplete {
		st.Commanded = observed
		st.SetupComplete = true
		c.log.Debug().Ints("levels", observed[:]).Msg("Seat heating baseline taken")
	} else if observed != st.Commanded {
		st.ManualLevels = observed
		st.LastManualOverride = now
		st.Commanded = observed
		st.AutoOffLatched = false
		c.released = nil
		if !observed.AnyOn() {
			st.HeatingActivatedAt = time.Time{}
		}
		overrides.Inc()
		c.log.Info().
			Ints("levels", observed[:]).
			Dur("silence_window", set.SilenceWindow).
			Msg("Manual seat heating change detected")
		return DecisionOverride
	}

	if len(c.released) > 0 {
		c.apply(ctx, c.released, 0, now)
		c.released = slices.DeleteFunc(c.released, func(seat Seat) bool {
			return st.Commanded[seat] == 0
		})
	}

	seats := set.Mode.Seats()

	if timer := set.AutoOff(); timer > 0 && !st.HeatingActivatedAt.IsZero() && now.Sub(st.HeatingActivatedAt) > timer {
		if !st.AutoOffLatched {
			c.log.Info().Dur("timer", timer).Msg("Auto-off timer expired, turning seat heating off")
		}
		st.AutoOffLatched = true
	}
	if st.AutoOffLatched {
		c.apply(ctx, allSeats, 0, now)
		return DecisionAutoOff
	}

	if st.Silenced(now) {
		return DecisionSilenced
	}
	if len(seats) == 0 {
		return DecisionDisabled
	}

	level := set.Level
	if set.Adaptive {
		temp, ok := snap.Temperature(string(set.Source)).Get()
		if !ok {
			return DecisionNoTemperature
		}
		level = AdaptiveLevel(temp, set.Threshold)
	}
	c.apply(ctx, seats, level, now)

	return DecisionApplied
}

func (c *Controller) readLevels(ctx context.Context) (Levels, bool) {
	var l Levels
	for _, seat := range allSeats {
		v, ok := c.io.ReadInt(ctx, catalog.SeatHeatingLevel, seat.Area())
		if !ok {
			return l, false
		}
		l[seat] = v
	}

	return l, true
}

// apply writes level to every seat whose commanded level differs. A failed
// write leaves the commanded level unchanged so the next evaluation retries.
func (c *Controller) apply(ctx context.Context, seats []Seat, level int, now time.Time) {
	st := &c.st
	wasOn := st.Commanded.AnyOn()

	for _, seat := range seats {
		if st.Commanded[seat] == level {
			continue
		}
		if !c.io.WriteInt(ctx, catalog.SeatHeatingLevel, seat.Area(), level) {
			seatWrites.WithLabelValues("error").Inc()
			c.log.ErrorWithCode(errors.New().WithData(errors.ErrOperationFailed, struct {
				Seat  string
				Level int
			}{
				Seat:  seat.String(),
				Level: level,
			})).Msg("Seat heating write failed, retrying next evaluation")
			continue
		}
		seatWrites.WithLabelValues("ok").Inc()
		st.Commanded[seat] = level
		c.log.Debug().Str("seat", seat.String()).Int("level", level).Msg("Seat heating level set")
	}

	switch isOn := st.Commanded.AnyOn(); {
	case isOn && (!wasOn || st.HeatingActivatedAt.IsZero()):
		st.HeatingActivatedAt = now
	case !isOn:
		st.HeatingActivatedAt = time.Time{}
	}
}

// Run evaluates the latest published snapshot every interval until ctx is
// done.
func (c *Controller) Run(ctx context.Context, snapshots *telemetry.Cell[telemetry.VehicleSnapshot], every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Evaluate(ctx, snapshots.Get(), c.now())
		}
	}
}
