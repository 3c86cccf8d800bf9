package property

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
)

// DefaultCallTimeout bounds a single physical call.
const DefaultCallTimeout = 250 * time.Millisecond

type (
	readIntFunc   func(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, error)
	readFloatFunc func(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, error)
	writeIntFunc  func(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) error
)

// resolved holds the entry points bound during Initialize.
type resolved struct {
	readInt   readIntFunc
	readFloat readFloatFunc
	writeInt  writeIntFunc
}

// Bridge is the single owner of the Hardware connection. All physical calls
// are serialized; one Bridge should exist per process.
type Bridge struct {
	hw      Hardware
	log     logger.Logger
	timeout time.Duration

	mu          sync.Mutex
	ops         *resolved
	unavailable bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// NewBridge wraps hw. No connection is made until the first Initialize or
// read.
func NewBridge(hw Hardware, opts ...Option) *Bridge {
	b := &Bridge{
		hw:      hw,
		log:     logger.New("property"),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Initialize connects and resolves every operation once. It returns true
// when the bridge is ready. A missing service is remembered and never
// retried; other failures may succeed on a later call.
func (b *Bridge) Initialize(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.initLocked(ctx)
}

func (b *Bridge) initLocked(ctx context.Context) bool {
	if b.unavailable {
		return false
	}
	if b.ops != nil {
		if b.hw.IsConnected() {
			return true
		}
		b.log.Warn().Msg("Property service connection lost, reconnecting")
		b.ops = nil
	}

	errFactory := errors.New()

	if err := guard(func() error { return b.hw.Connect(ctx) }); err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			b.markUnavailable(errFactory.Wrap(ErrConnectFailed, err))
			return false
		}
		b.log.Debug().Err(err).Msg("Property service connect failed")
		bridgeInits.WithLabelValues("failed").Inc()
		return false
	}

	if r, ok := b.hw.(Resolver); ok {
		for _, op := range operations {
			err := guard(func() error { return r.Resolve(op) })
			if err == nil {
				continue
			}
			_ = guard(b.hw.Disconnect)
			if errors.Is(err, ErrServiceUnavailable) {
				b.markUnavailable(errFactory.Wrap(ErrResolveFailed, err).WithData(op))
				return false
			}
			b.log.Debug().Err(err).Str("operation", string(op)).Msg("Failed to resolve property operation")
			bridgeInits.WithLabelValues("failed").Inc()
			return false
		}
	}

	b.ops = &resolved{
		readInt:   b.hw.ReadInt,
		readFloat: b.hw.ReadFloat,
		writeInt:  b.hw.WriteInt,
	}
	bridgeInits.WithLabelValues("ready").Inc()
	b.log.Info().Msg("Property service connected")

	return true
}

func (b *Bridge) markUnavailable(err errors.Error) {
	b.unavailable = true
	bridgeInits.WithLabelValues("unavailable").Inc()
	b.log.ErrorWithCode(err).Msg("Property service not available on this head unit, disabling hardware access")
}

// ready returns the resolved operations, attempting Initialize at most once.
func (b *Bridge) ready(ctx context.Context) *resolved {
	if b.ops != nil {
		return b.ops
	}
	if b.unavailable || !b.initLocked(ctx) {
		return nil
	}
	return b.ops
}

// ReadInt reads an integer property. ok is false on any failure.
func (b *Bridge) ReadInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := b.ready(ctx)
	if ops == nil {
		propertyCalls.WithLabelValues(string(OpReadInt), resultSkipped).Inc()
		return 0, false
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var v int
	err := guard(func() error {
		var err error
		v, err = ops.readInt(callCtx, id, area)
		return err
	})
	b.observe(OpReadInt, id, area, err)

	return v, err == nil
}

// ReadFloat reads a float property. ok is false on any failure.
func (b *Bridge) ReadFloat(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := b.ready(ctx)
	if ops == nil {
		propertyCalls.WithLabelValues(string(OpReadFloat), resultSkipped).Inc()
		return 0, false
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var v float64
	err := guard(func() error {
		var err error
		v, err = ops.readFloat(callCtx, id, area)
		return err
	})
	b.observe(OpReadFloat, id, area, err)

	return v, err == nil
}

// WriteInt writes an integer property and reports whether the service
// accepted it.
func (b *Bridge) WriteInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := b.ready(ctx)
	if ops == nil {
		propertyCalls.WithLabelValues(string(OpWriteInt), resultSkipped).Inc()
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := guard(func() error { return ops.writeInt(callCtx, id, area, value) })
	b.observe(OpWriteInt, id, area, err)
	if err == nil {
		b.log.Debug().
			Str("address", catalog.Address{ID: id, Area: area}.String()).
			Int("value", value).
			Msg("Property written")
	}

	return err == nil
}

func (b *Bridge) observe(op Operation, id catalog.PropertyID, area catalog.AreaID, err error) {
	if err == nil {
		propertyCalls.WithLabelValues(string(op), resultOK).Inc()
		return
	}
	propertyCalls.WithLabelValues(string(op), resultError).Inc()
	if b.ops != nil && !b.hw.IsConnected() {
		// dropped connection: the next call reconnects
		b.ops = nil
	}
	b.log.Debug().
		Err(err).
		Str("operation", string(op)).
		Str("address", catalog.Address{ID: id, Area: area}.String()).
		Msg("Property call failed")
}

// Release disconnects and drops every resolved operation. It is safe to
// call more than once. A service found unavailable stays unavailable.
func (b *Bridge) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ops == nil {
		return nil
	}
	b.ops = nil

	if err := guard(b.hw.Disconnect); err != nil {
		return errors.New().Wrap(ErrDisconnectFailed, err)
	}
	b.log.Info().Msg("Property service released")

	return nil
}

// Status reports the current connection health.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.unavailable:
		return StatusUnavailable
	case b.ops != nil:
		return StatusReady
	default:
		return StatusUninitialized
	}
}

// guard runs fn and converts a panic in the vendor adapter into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New().WithData(ErrCallPanicked, fmt.Sprint(r))
		}
	}()

	return fn()
}
