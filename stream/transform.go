// Package stream provides lazy, pull-based sequence combinators for building
// record pipelines. All combinators delegate traversal to their source: no
// element is fetched or transformed until the consumer asks for it, each
// element is handled at most once per traversal, and order is preserved.
//
// Sequences that can fail mid-traversal are expressed as iter.Seq2[T, error];
// a non-nil error is the final element of such a sequence.
package stream

import (
	"iter"
	"log/slog"

	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
)

// Transformation converts a single element from one type to another.
type Transformation[S, T any] func(S) T

// Transform applies t to each element of src, returning the sequence of the
// transformed elements. The result is itself a valid source for further
// wrapping, so transforms compose.
func Transform[S, T any](t Transformation[S, T], src iter.Seq[S]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range src {
			if !yield(t(v)) {
				return
			}
		}
	}
}

// TryTransform applies a fallible transform to each element of src.
// On failure the zero value is yielded together with the error, annotated
// with the zero-based position of the offending element, and traversal stops;
// no further elements are fetched from src.
func TryTransform[S, T any](t func(S) (T, error), src iter.Seq[S]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		position := 0
		for v := range src {
			out, err := t(v)
			if err != nil {
				var zero T
				yield(zero, errcontext.Add(err, slog.Int("position", position)))
				return
			}
			if !yield(out, nil) {
				return
			}
			position++
		}
	}
}

// TransformSeq2 applies an infallible transform to the values of a fallible
// source. Source errors pass through unchanged, paired with the zero value,
// and end the traversal.
func TransformSeq2[S, T any](t Transformation[S, T], src iter.Seq2[S, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range src {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(t(v), nil) {
				return
			}
		}
	}
}
