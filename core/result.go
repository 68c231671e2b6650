package core

import "encoding/json"

// Result holds either a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps an error. A nil err is replaced so the result stays a failure.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errNilFailure
	}
	return Result[T]{err: err}
}

// Of builds a Result from a conventional (value, error) pair.
func Of[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Err returns the failure, or nil.
func (r Result[T]) Err() error { return r.err }

// Value returns the success value. It is the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Unwrap returns the conventional pair.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// ErrorBody is the wire form of a failed Result.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MarshalJSON renders {"data": ...} on success and {"error": {...}} on failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(struct {
			Error ErrorBody `json:"error"`
		}{ErrorBody{Kind: KindOf(r.err), Message: r.err.Error()}})
	}
	return json.Marshal(struct {
		Data T `json:"data"`
	}{r.value})
}

type nilFailure struct{}

func (nilFailure) Error() string { return "unspecified failure" }

var errNilFailure error = nilFailure{}
