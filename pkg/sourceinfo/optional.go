package sourceinfo

import (
	"bytes"

	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
)

// Optional holds a value that may be absent. The zero Optional is absent.
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None returns an absent Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// IsPresent reports whether a value is held
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// OrElse returns the held value or def when absent
func (o Optional[T]) OrElse(def T) T {
	if o.present {
		return o.value
	}
	return def
}

// MarshalJSON encodes an absent value as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return jsonpool.Marshal(o.value)
}

// UnmarshalJSON treats null as absent
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}

	var v T
	if err := jsonpool.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
