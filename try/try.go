// Package try carries a value-or-error pair across channels.
package try

// Try holds either a value or the error that prevented producing it.
type Try[A any] struct {
	Value A
	Error error
}

// Of wraps the usual (value, error) return pair.
func Of[A any](value A, err error) Try[A] {
	return Try[A]{Value: value, Error: err}
}

func (t Try[A]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the pair. The zero value is returned alongside any error.
func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}
