// Package drivemode tracks the current drive mode, applies mode changes
// through the property bridge and keeps a bounded diagnostic log.
package drivemode

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
)

const (
	DefaultCapacity       = 500
	DefaultCollapseWindow = 2 * time.Second

	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrUnknownMode   = errors.ErrorCode("drivemode_unknown_mode")
	ErrApply         = errors.ErrApplyDriveMode
)

type Config struct {
	Capacity       int
	CollapseWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		CollapseWindow: DefaultCollapseWindow,
	}
}

func (c Config) Validate() error {
	if c.Capacity < 1 || c.CollapseWindow < 0 {
		return errors.New().WithData(ErrInvalidConfig, struct {
			Capacity       int
			CollapseWindow string
		}{
			Capacity:       c.Capacity,
			CollapseWindow: c.CollapseWindow.String(),
		})
	}
	return nil
}

// Registry holds the last known mode label and the mode log.
type Registry struct {
	w    property.Writer
	log  logger.Logger
	logs *Log
	mode *telemetry.Cell[string]

	// mu orders label changes: a bus read or write and the label update
	// that follows it happen as one step.
	mu sync.Mutex
}

type Option func(*Registry)

func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithClock sets the clock used to timestamp log entries.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.logs.now = now
	}
}

// NewRegistry returns a registry with an empty log and an unknown mode. w
// may be nil when modes are never applied.
func NewRegistry(w property.Writer, cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		w:    w,
		log:  logger.New("drivemode"),
		logs: NewLog(cfg.Capacity, cfg.CollapseWindow, nil),
		mode: telemetry.NewCell(catalog.ModeUnknown.DisplayName()),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Mode returns the current label.
func (r *Registry) Mode() string {
	return r.mode.Get()
}

// Modes publishes every label change.
func (r *Registry) Modes() *telemetry.Cell[string] {
	return r.mode
}

// SetMode replaces the label and logs the change. Setting the current label
// again does nothing.
func (r *Registry) SetMode(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setModeLocked(label)
}

func (r *Registry) setModeLocked(label string) {
	if r.mode.Get() == label {
		return
	}
	r.mode.Store(label)
	r.logs.Appendf("Drive mode: %s", label)
}

// Record appends a free-form line to the log.
func (r *Registry) Record(line string) {
	r.logs.Append(line)
}

func (r *Registry) Tail(n int) []string {
	return r.logs.Tail(n)
}

func (r *Registry) Lines() []string {
	return r.logs.Lines()
}

// Entries exposes the raw entries, oldest first.
func (r *Registry) Entries(n int) []Entry {
	return r.logs.Entries(n)
}

// Apply commands mode m. On failure the current label is left as it was.
func (r *Registry) Apply(ctx context.Context, m catalog.DriveMode) error {
	errFactory := errors.New()

	if !m.IsKnown() {
		return errFactory.WithData(ErrUnknownMode, m.Key())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil || !r.w.WriteInt(ctx, catalog.DriveModeFunction, catalog.AreaGlobal, m.Code()) {
		r.logs.Appendf("Failed to apply drive mode %s", m.DisplayName())
		err := errFactory.WithData(ErrApply, struct {
			Mode string
			Code int
		}{
			Mode: m.Key(),
			Code: m.Code(),
		})
		r.log.ErrorWithCode(err).Msg("Drive mode write rejected")
		return err
	}

	r.log.Info().Str("mode", m.Key()).Int("code", m.Code()).Msg("Drive mode applied")
	r.logs.Appendf("Applied drive mode %s", m.DisplayName())
	r.setModeLocked(m.DisplayName())

	return nil
}

// Sync reads the active mode code from the bus and records it. Repeated
// identical readings collapse in the log.
func (r *Registry) Sync(ctx context.Context, rd property.Reader) (catalog.DriveMode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := rd.ReadInt(ctx, catalog.DriveModeFunction, catalog.AreaGlobal)
	if !ok {
		return catalog.ModeUnknown, false
	}

	m := catalog.ModeFromCode(code)
	r.setModeLocked(m.DisplayName())

	return m, true
}

// Run syncs the mode every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, rd property.Reader, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sync(ctx, rd)
		}
	}
}
