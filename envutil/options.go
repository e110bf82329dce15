package envutil

// Option modifies a Reader. Functions like String and Bool accept them so that
// callers can attach defaults and validation inline.
type Option[T any] func(Reader[T]) Reader[T]

// Default supplies the value used when the variable is not set.
func Default[T any](dfl T) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.WithDefault(dfl)
	}
}

// Validate runs f on a present value; a non-nil result becomes the Reader's error.
func Validate[T any](f func(T) error) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.Map(func(val T) (T, error) {
			return val, f(val)
		})
	}
}
