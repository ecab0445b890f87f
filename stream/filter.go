package stream

import "iter"

type Predicate[V any] func(V) bool

// Filter returns a sequence that contains the elements of src for which p
// returns true.
func Filter[V any](p Predicate[V], src iter.Seq[V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		for v := range src {
			if p(v) {
				if !yield(v) {
					return
				}
			}
		}
	}
}
