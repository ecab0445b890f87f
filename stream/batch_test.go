package stream_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapipe-labs/dp-go-common/stream"
)

func TestTake(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    []int
		n        int
		expected []int
	}{
		{
			name:     "take fewer than available",
			input:    []int{1, 2, 3, 4, 5},
			n:        3,
			expected: []int{1, 2, 3},
		},
		{
			name:     "take more than available",
			input:    []int{1, 2},
			n:        5,
			expected: []int{1, 2},
		},
		{
			name:     "take zero",
			input:    []int{1, 2, 3},
			n:        0,
			expected: nil,
		},
		{
			name:     "take negative",
			input:    []int{1, 2, 3},
			n:        -1,
			expected: nil,
		},
		{
			name:     "empty source",
			input:    []int{},
			n:        3,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := slices.Collect(stream.Take(tt.n, slices.Values(tt.input)))
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestTake_DoesNotOverfetch verifies the source is not pulled past the nth
// element.
func TestTake_DoesNotOverfetch(t *testing.T) {
	t.Parallel()

	fetched := 0
	source := func(yield func(int) bool) {
		for i := 1; i <= 100; i++ {
			fetched++
			if !yield(i) {
				return
			}
		}
	}

	result := slices.Collect(stream.Take(4, source))
	assert.Equal(t, []int{1, 2, 3, 4}, result)
	assert.Equal(t, 4, fetched)
}

func TestChunks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    []int
		size     int
		expected [][]int
	}{
		{
			name:     "even split",
			input:    []int{1, 2, 3, 4, 5, 6},
			size:     2,
			expected: [][]int{{1, 2}, {3, 4}, {5, 6}},
		},
		{
			name:     "short final chunk",
			input:    []int{1, 2, 3, 4, 5},
			size:     2,
			expected: [][]int{{1, 2}, {3, 4}, {5}},
		},
		{
			name:     "chunk larger than input",
			input:    []int{1, 2},
			size:     10,
			expected: [][]int{{1, 2}},
		},
		{
			name:     "size one",
			input:    []int{1, 2, 3},
			size:     1,
			expected: [][]int{{1}, {2}, {3}},
		},
		{
			name:     "empty source",
			input:    []int{},
			size:     3,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := slices.Collect(stream.Chunks(tt.size, slices.Values(tt.input)))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestChunks_InvalidSizePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		stream.Chunks(0, slices.Values([]int{1}))
	})
}

func TestChunks_EarlyBreak(t *testing.T) {
	t.Parallel()

	fetched := 0
	source := func(yield func(int) bool) {
		for i := 1; i <= 100; i++ {
			fetched++
			if !yield(i) {
				return
			}
		}
	}

	var first []int
	for chunk := range stream.Chunks(3, source) {
		first = chunk
		break
	}

	assert.Equal(t, []int{1, 2, 3}, first)
	assert.Equal(t, 3, fetched)
}
