// Package sim is a simulated property service used when no vendor binding
// is available, e.g. on a development machine.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/property"
)

var errUnsupported = fmt.Errorf("sim: operation not supported for this property/area")

// Hardware simulates a parked car warming up in cold weather. Temperatures
// drift with time, writes are remembered, and a few properties fail for
// some area IDs the way real head units do.
type Hardware struct {
	mu        sync.Mutex
	start     time.Time
	now       func() time.Time
	connected bool

	ints        map[catalog.Address]int
	floats      map[catalog.Address]float64
	unsupported map[catalog.Address]bool
}

// New returns a simulator whose clock starts now.
func New() *Hardware {
	return NewWithClock(time.Now)
}

// NewWithClock returns a simulator driven by the given clock.
func NewWithClock(now func() time.Time) *Hardware {
	h := &Hardware{
		start:       now(),
		now:         now,
		ints:        make(map[catalog.Address]int),
		floats:      make(map[catalog.Address]float64),
		unsupported: make(map[catalog.Address]bool),
	}
	h.seed()

	return h
}

func at(id catalog.PropertyID, area catalog.AreaID) catalog.Address {
	return catalog.Address{ID: id, Area: area}
}

func (h *Hardware) seed() {
	g := catalog.AreaGlobal

	h.ints[at(catalog.Speed, g)] = 0
	h.ints[at(catalog.EngineRPM, g)] = 780
	h.ints[at(catalog.Gear, g)] = 1
	h.ints[at(catalog.PowerState, g)] = 4

	h.ints[at(catalog.FuelRange, g)] = 420
	h.ints[at(catalog.FuelCapacity, g)] = 4500
	h.ints[at(catalog.FuelLevelCandidate, g)] = 3100
	// Area 0 reports a zero average; the driver-zone value is the real one.
	h.floats[at(catalog.AverageFuel, g)] = 0
	h.floats[at(catalog.AverageFuel, catalog.AreaDriver)] = 6.2

	h.ints[at(catalog.Odometer, g)] = 48211
	h.floats[at(catalog.TripMileage, g)] = 12.4
	h.unsupported[at(catalog.TripTime, g)] = true

	for _, w := range catalog.Wheels {
		h.ints[at(catalog.TirePressureID(w), g)] = 235
		h.ints[at(catalog.TireTemperatureID(w), g)] = 9
	}
	h.ints[at(catalog.TirePressureID(catalog.RearLeft), g)] = 186

	h.ints[at(catalog.BatteryLevel, g)] = 87
	h.ints[at(catalog.AirQualityIndex, g)] = 23
	h.ints[at(catalog.NightMode, g)] = 0
	h.ints[at(catalog.ServiceDueDays, g)] = 143
	h.ints[at(catalog.ServiceDueKm, g)] = 7800

	h.ints[at(catalog.SeatHeatingLevel, catalog.AreaDriver)] = 0
	h.ints[at(catalog.SeatHeatingLevel, catalog.AreaPassenger)] = 0
	h.ints[at(catalog.DriveModeFunction, g)] = catalog.ModeComfort.Code()
}

// Unsupported marks an address as failing for every read.
func (h *Hardware) Unsupported(id catalog.PropertyID, area catalog.AreaID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsupported[at(id, area)] = true
}

// Set overrides a simulated integer value.
func (h *Hardware) Set(id catalog.PropertyID, area catalog.AreaID, v int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ints[at(id, area)] = v
}

func (h *Hardware) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = true
	return nil
}

func (h *Hardware) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *Hardware) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
	return nil
}

// Resolve accepts every operation the simulator implements.
func (h *Hardware) Resolve(op property.Operation) error {
	switch op {
	case property.OpReadInt, property.OpReadFloat, property.OpWriteInt:
		return nil
	default:
		return fmt.Errorf("sim: %s: %w", op, property.ErrServiceUnavailable)
	}
}

func (h *Hardware) ReadInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected {
		return 0, property.ErrNotConnected
	}
	a := at(id, area)
	if h.unsupported[a] {
		return 0, errUnsupported
	}
	if v, ok := h.dynamic(a); ok {
		return v, nil
	}
	v, ok := h.ints[a]
	if !ok {
		return 0, errUnsupported
	}

	return v, nil
}

func (h *Hardware) ReadFloat(ctx context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected {
		return 0, property.ErrNotConnected
	}
	a := at(id, area)
	if h.unsupported[a] {
		return 0, errUnsupported
	}
	v, ok := h.floats[a]
	if !ok {
		return 0, errUnsupported
	}

	return v, nil
}

func (h *Hardware) WriteInt(ctx context.Context, id catalog.PropertyID, area catalog.AreaID, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected {
		return property.ErrNotConnected
	}

	switch id {
	case catalog.SeatHeatingLevel:
		if area != catalog.AreaDriver && area != catalog.AreaPassenger {
			return errUnsupported
		}
		if value < 0 || value > 3 {
			return fmt.Errorf("sim: seat heating level %d out of range", value)
		}
	case catalog.DriveModeFunction:
		if !catalog.ModeFromCode(value).IsKnown() {
			return fmt.Errorf("sim: drive mode code %d rejected", value)
		}
	default:
		return errUnsupported
	}
	h.ints[at(id, area)] = value

	return nil
}

// dynamic derives time-varying values. Cabin temperature climbs from -2°C
// towards 21°C over ten minutes, ambient oscillates around 3°C.
func (h *Hardware) dynamic(a catalog.Address) (int, bool) {
	if a.Area != catalog.AreaGlobal {
		return 0, false
	}
	elapsed := h.now().Sub(h.start).Seconds()

	switch a.ID {
	case catalog.CabinTemperature:
		progress := math.Min(elapsed/600, 1)
		return int(-20 + progress*230), true
	case catalog.AmbientTemperature:
		return int(30 + 15*math.Sin(elapsed/300)), true
	case catalog.CoolantTemperature:
		return int(math.Min(150+elapsed*2, 900)), true
	case catalog.OilTemperature:
		return int(math.Min(100+elapsed*1.5, 1050)), true
	default:
		return 0, false
	}
}
