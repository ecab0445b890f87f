package stream

import "iter"

// FilterSeq2 returns the elements of a fallible source for which p returns
// true. A source error passes through and ends the traversal.
func FilterSeq2[V any](p Predicate[V], src iter.Seq2[V, error]) iter.Seq2[V, error] {
	return func(yield func(V, error) bool) {
		for v, err := range src {
			if err != nil {
				var zero V
				yield(zero, err)
				return
			}
			if p(v) {
				if !yield(v, nil) {
					return
				}
			}
		}
	}
}

// Collect2 gathers a fallible sequence into a slice. It returns the elements
// yielded before the first error, together with that error; a nil error means
// the source was exhausted cleanly.
func Collect2[V any](src iter.Seq2[V, error]) ([]V, error) {
	var out []V
	for v, err := range src {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Drain traverses a fallible sequence for effect, discarding the values. It
// returns the number of elements consumed and the first error encountered,
// if any.
func Drain[V any](src iter.Seq2[V, error]) (int, error) {
	n := 0
	for _, err := range src {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
