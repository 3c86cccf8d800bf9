// Package propertytest provides a scripted Hardware for tests.
package propertytest

import (
	"context"
	"errors"
	"sync"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
)

// ErrUnsupported is returned for addresses marked with Fail.
var ErrUnsupported = errors.New("operation not supported for this property/area")

// Write records one accepted write.
type Write struct {
	Address catalog.Address
	Value   int
}

// Fake is an in-memory Hardware. Unknown addresses fail like an
// unsupported property would.
type Fake struct {
	mu sync.Mutex

	ints      map[catalog.Address]int
	floats    map[catalog.Address]float64
	fail      map[catalog.Address]bool
	failWrite map[catalog.Address]bool
	calls     map[catalog.Address]int
	writes    []Write

	connectErr   error
	connectCalls int
	connected    bool
	panicOn      map[catalog.Address]bool
}

// NewFake returns an empty, disconnected Fake.
func NewFake() *Fake {
	return &Fake{
		ints:      make(map[catalog.Address]int),
		floats:    make(map[catalog.Address]float64),
		fail:      make(map[catalog.Address]bool),
		failWrite: make(map[catalog.Address]bool),
		calls:     make(map[catalog.Address]int),
		panicOn:   make(map[catalog.Address]bool),
	}
}

func addr(id catalog.PropertyID, area catalog.AreaID) catalog.Address {
	return catalog.Address{ID: id, Area: area}
}

func (f *Fake) SetInt(id catalog.PropertyID, area catalog.AreaID, v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints[addr(id, area)] = v
}

func (f *Fake) SetFloat(id catalog.PropertyID, area catalog.AreaID, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.floats[addr(id, area)] = v
}

// Fail makes every read of the address return ErrUnsupported.
func (f *Fake) Fail(id catalog.PropertyID, area catalog.AreaID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[addr(id, area)] = true
}

// FailWrites makes writes to the address fail until Heal is called.
func (f *Fake) FailWrites(id catalog.PropertyID, area catalog.AreaID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite[addr(id, area)] = true
}

// Heal clears Fail and FailWrites for the address.
func (f *Fake) Heal(id catalog.PropertyID, area catalog.AreaID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fail, addr(id, area))
	delete(f.failWrite, addr(id, area))
}

// PanicOn makes reads of the address panic.
func (f *Fake) PanicOn(id catalog.PropertyID, area catalog.AreaID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicOn[addr(id, area)] = true
}

// SetConnectError makes Connect return err.
func (f *Fake) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// Drop simulates the service closing the connection.
func (f *Fake) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// Calls returns how many reads were attempted on the address.
func (f *Fake) Calls(id catalog.PropertyID, area catalog.AreaID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[addr(id, area)]
}

func (f *Fake) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

// Writes returns a copy of every accepted write.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *Fake) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) ReadInt(_ context.Context, id catalog.PropertyID, area catalog.AreaID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := addr(id, area)
	f.calls[a]++
	if f.panicOn[a] {
		panic("native call crashed")
	}
	v, ok := f.ints[a]
	if !ok || f.fail[a] {
		return 0, ErrUnsupported
	}
	return v, nil
}

func (f *Fake) ReadFloat(_ context.Context, id catalog.PropertyID, area catalog.AreaID) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := addr(id, area)
	f.calls[a]++
	if f.panicOn[a] {
		panic("native call crashed")
	}
	v, ok := f.floats[a]
	if !ok || f.fail[a] {
		return 0, ErrUnsupported
	}
	return v, nil
}

// WriteInt stores the value so a later ReadInt observes it.
func (f *Fake) WriteInt(_ context.Context, id catalog.PropertyID, area catalog.AreaID, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := addr(id, area)
	if f.failWrite[a] {
		return ErrUnsupported
	}
	f.ints[a] = value
	f.writes = append(f.writes, Write{Address: a, Value: value})
	return nil
}
