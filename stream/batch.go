package stream

import "iter"

// Take returns a sequence of at most n elements of src. The source is not
// pulled past the nth element.
func Take[V any](n int, src iter.Seq[V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		if n <= 0 {
			return
		}
		taken := 0
		for v := range src {
			if !yield(v) {
				return
			}
			taken++
			if taken == n {
				return
			}
		}
	}
}

// Chunks groups consecutive elements of src into slices of at most size
// elements. Only the final chunk may be short. Chunks panics if size is not
// positive. Each chunk is a fresh slice owned by the consumer.
func Chunks[V any](size int, src iter.Seq[V]) iter.Seq[[]V] {
	if size <= 0 {
		panic("stream: chunk size must be positive")
	}
	return func(yield func([]V) bool) {
		chunk := make([]V, 0, size)
		for v := range src {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]V, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}
