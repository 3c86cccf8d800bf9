// Package property owns the single connection to the vehicle property
// service and exposes a uniform typed read/write contract over it.
package property

import (
	"context"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
)

// Hardware is the boundary to the vendor property service. Implementations
// wrap the native API; failures are untyped except for ErrServiceUnavailable,
// which means the service itself is absent.
//
// Calls receive a context carrying the bridge's per-call deadline and should
// give up once it expires.
type Hardware interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Disconnect() error
	ReadInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, error)
	ReadFloat(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, error)
	WriteInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) error
}

// Resolver is implemented by adapters whose entry points are looked up at
// runtime. Resolve returns ErrServiceUnavailable when the symbol is absent.
type Resolver interface {
	Resolve(op Operation) error
}

// Operation names one entry point of the property service.
type Operation string

const (
	OpReadInt   Operation = "getIntProperty"
	OpReadFloat Operation = "getFloatProperty"
	OpWriteInt  Operation = "setIntProperty"
)

var operations = []Operation{OpReadInt, OpReadFloat, OpWriteInt}

// Status describes the bridge's connection health.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusReady         Status = "ready"
	StatusUnavailable   Status = "unavailable"
)

// Reader is the read side of the bridge, consumed by pollers.
type Reader interface {
	ReadInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, bool)
	ReadFloat(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, bool)
	Status() Status
}

// Writer is the write side of the bridge, consumed by controllers.
type Writer interface {
	WriteInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) bool
}

// ReadWriter combines both sides.
type ReadWriter interface {
	Reader
	Writer
}
