// Package xerrors attaches arbitrary typed data to errors while preserving the error chain.
package xerrors

import (
	"errors"
	"log/slog"
)

// Annotated is an error carrying a typed payload alongside the error it wraps.
type Annotated[T any] struct {
	Data T
	err  error
}

// Error returns the message of the wrapped error.
func (a Annotated[T]) Error() string {
	return a.err.Error()
}

// Unwrap returns the wrapped error.
func (a Annotated[T]) Unwrap() error {
	return a.err
}

// LogValue implements slog.LogValuer, exposing the payload.
// The error message itself is logged at a higher level to avoid duplication.
func (a Annotated[T]) LogValue() slog.Value {
	if lv, ok := any(a.Data).(slog.LogValuer); ok {
		return lv.LogValue()
	}
	return slog.AnyValue(a.Data)
}

// Attach wraps err with the given payload. A nil err stays nil.
func Attach[T any](data T, err error) error {
	if err == nil {
		return nil
	}
	return Annotated[T]{Data: data, err: err}
}

// Lookup retrieves a payload of type T from anywhere in the error chain.
// If the same type was attached more than once, the outermost wins.
func Lookup[T any](err error) (T, bool) {
	var annotated Annotated[T]
	ok := errors.As(err, &annotated)
	return annotated.Data, ok
}

// Split returns the direct children of an error built with errors.Join,
// or a single-element slice for any other non-nil error.
func Split(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// Leaves walks a joined error tree and returns every leaf error.
// Unlike Split, nested joins are descended into.
func Leaves(err error) []error {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var leaves []error
		for _, e := range joined.Unwrap() {
			leaves = append(leaves, Leaves(e)...)
		}
		return leaves
	}

	// A wrapper may hide a join further down the chain.
	if inner := errors.Unwrap(err); inner != nil {
		if leaves := Leaves(inner); len(leaves) > 1 {
			return leaves
		}
	}

	return []error{err}
}
