// Package optional models a value that may be absent without resorting to nil pointers.
// Flow states use it for data that only some paths carry, such as a device share
// or the metadata recovered during a restore.
package optional

import (
	"encoding/json"
	"fmt"
)

// Value is either empty or holds exactly one T.
type Value[T any] struct {
	value T
	isSet bool
}

// Some creates a Value containing the given value.
func Some[T any](value T) Value[T] {
	return Value[T]{value: value, isSet: true}
}

// None creates an empty Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// NonEmpty returns true if the Value contains a value.
func (o Value[T]) NonEmpty() bool {
	return o.isSet
}

// Empty returns true if the Value does not contain a value.
func (o Value[T]) Empty() bool {
	return !o.isSet
}

// Get returns the value and whether it was present.
func (o Value[T]) Get() (T, bool) { //nolint:ireturn
	return o.value, o.isSet
}

// GetOrElse returns the value if present, otherwise defaultValue.
func (o Value[T]) GetOrElse(defaultValue T) T { //nolint:ireturn
	if o.isSet {
		return o.value
	}

	return defaultValue
}

// OrElse returns o when it is set and alternative otherwise.
func (o Value[T]) OrElse(alternative Value[T]) Value[T] {
	if o.isSet {
		return o
	}

	return alternative
}

func (o Value[T]) String() string {
	if !o.isSet {
		return "None"
	}

	return fmt.Sprintf("Some(%v)", o.value)
}

// MarshalJSON encodes an empty Value as null and a set Value as its contents.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.isSet {
		return []byte("null"), nil
	}

	return json.Marshal(o.value)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()

		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*o = Some(v)

	return nil
}
