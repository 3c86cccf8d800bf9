package telemetry

import (
	"context"
	"slices"
	"sync"
)

// Cell is a single-writer, multi-reader versioned value. Every Store bumps
// the version and wakes all waiters; readers never observe a version older
// than one they have already seen.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
	subs    []*Subscription[T]
}

// NewCell returns a cell holding initial at version 0.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Load returns the current value and its version.
func (c *Cell[T]) Load() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	v, _ := c.Load()
	return v
}

// Version returns the number of stores so far.
func (c *Cell[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Store publishes v and returns its version.
func (c *Cell[T]) Store(v T) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = v
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
	for _, sub := range c.subs {
		sub.push(v, c.version)
	}

	return c.version
}

// Changed returns a channel closed by the next Store.
func (c *Cell[T]) Changed() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

// Wait blocks until the version exceeds after, then returns the latest
// value. Intermediate values may be skipped.
func (c *Cell[T]) Wait(ctx context.Context, after uint64) (T, uint64, error) {
	for {
		c.mu.RLock()
		v, ver, ch := c.value, c.version, c.changed
		c.mu.RUnlock()

		if ver > after {
			return v, ver, nil
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ver, ctx.Err()
		case <-ch:
		}
	}
}

// Watch calls fn with every new value stored after the call, until ctx is
// done. A slow fn sees only the latest value.
func (c *Cell[T]) Watch(ctx context.Context, fn func(T)) {
	after := c.Version()
	for {
		v, ver, err := c.Wait(ctx, after)
		if err != nil {
			return
		}
		after = ver
		fn(v)
	}
}

// Subscription receives every value stored in a cell, in order. Unlike
// Wait, no intermediate version is skipped; the queue grows while the
// reader falls behind.
type Subscription[T any] struct {
	cell *Cell[T]

	mu     sync.Mutex
	queue  []versioned[T]
	notify chan struct{}
	closed bool
}

type versioned[T any] struct {
	value   T
	version uint64
}

// Subscribe returns a subscription to every value stored after the call,
// together with the value and version current at the time of the call.
func (c *Cell[T]) Subscribe() (*Subscription[T], T, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription[T]{
		cell:   c,
		notify: make(chan struct{}, 1),
	}
	c.subs = append(c.subs, sub)

	return sub, c.value, c.version
}

func (s *Subscription[T]) push(v T, ver uint64) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, versioned[T]{value: v, version: ver})
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the oldest value not yet received, blocking until one is
// stored or ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (T, uint64, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue[0] = versioned[T]{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return next.value, next.version, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, 0, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close detaches the subscription from its cell. Queued values are dropped.
func (s *Subscription[T]) Close() {
	c := s.cell
	c.mu.Lock()
	c.subs = slices.DeleteFunc(c.subs, func(other *Subscription[T]) bool {
		return other == s
	})
	c.mu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}
