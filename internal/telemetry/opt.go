package telemetry

import "encoding/json"

// Opt is an optional value. The zero Opt is absent. Opt is comparable
// whenever T is, which keeps snapshots comparable with ==.
type Opt[T comparable] struct {
	Value T
	Valid bool
}

// Some returns a present Opt.
func Some[T comparable](v T) Opt[T] {
	return Opt[T]{Value: v, Valid: true}
}

// None returns an absent Opt.
func None[T comparable]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// Or returns the value, or def when absent.
func (o Opt[T]) Or(def T) T {
	if o.Valid {
		return o.Value
	}
	return def
}

// OrElse returns o when present, otherwise other.
func (o Opt[T]) OrElse(other Opt[T]) Opt[T] {
	if o.Valid {
		return o
	}
	return other
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
