package enclave

// Result is the two-variant outcome container every public operation
// returns: either a value or an ordered sequence of user-facing errors.
// User-caused failures always travel through the failure variant; the
// pipeline never raises for them. Pipeline defects use the separate error
// return of each operation.
type Result[T any] struct {
	value T
	errs  []Error
	ok    bool
}

// Ok wraps a successful outcome.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail wraps an ordered list of user-facing errors.
func Fail[T any](errs ...Error) Result[T] {
	return Result[T]{errs: errs}
}

func (r Result[T]) IsOk() bool {
	return r.ok
}

// Value returns the success value; the zero value when the result is a
// failure.
func (r Result[T]) Value() T {
	return r.value
}

// Errors returns the failure list in the order the errors were produced,
// nil on success.
func (r Result[T]) Errors() []Error {
	return r.errs
}
