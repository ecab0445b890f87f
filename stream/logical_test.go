package stream_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapipe-labs/dp-go-common/stream"
)

func TestAnd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     []int
		predicate stream.Predicate[int]
		expected  bool
	}{
		{
			name:      "all pass",
			input:     []int{2, 4, 6},
			predicate: func(n int) bool { return n%2 == 0 },
			expected:  true,
		},
		{
			name:      "one fails",
			input:     []int{2, 3, 6},
			predicate: func(n int) bool { return n%2 == 0 },
			expected:  false,
		},
		{
			name:      "empty sequence is vacuously true",
			input:     []int{},
			predicate: func(n int) bool { return false },
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, stream.And(tt.predicate, slices.Values(tt.input)))
		})
	}
}

func TestOr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     []int
		predicate stream.Predicate[int]
		expected  bool
	}{
		{
			name:      "one passes",
			input:     []int{1, 3, 4},
			predicate: func(n int) bool { return n%2 == 0 },
			expected:  true,
		},
		{
			name:      "none pass",
			input:     []int{1, 3, 5},
			predicate: func(n int) bool { return n%2 == 0 },
			expected:  false,
		},
		{
			name:      "empty sequence is false",
			input:     []int{},
			predicate: func(n int) bool { return true },
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, stream.Or(tt.predicate, slices.Values(tt.input)))
		})
	}
}

// TestAnd_ShortCircuits verifies the source is not pulled past the first
// failing element.
func TestAnd_ShortCircuits(t *testing.T) {
	t.Parallel()

	fetched := 0
	source := func(yield func(int) bool) {
		for _, v := range []int{2, 3, 4, 5} {
			fetched++
			if !yield(v) {
				return
			}
		}
	}

	assert.False(t, stream.And(func(n int) bool { return n%2 == 0 }, source))
	assert.Equal(t, 2, fetched)
}

func TestOr_ShortCircuits(t *testing.T) {
	t.Parallel()

	fetched := 0
	source := func(yield func(int) bool) {
		for _, v := range []int{1, 2, 3, 4} {
			fetched++
			if !yield(v) {
				return
			}
		}
	}

	assert.True(t, stream.Or(func(n int) bool { return n%2 == 0 }, source))
	assert.Equal(t, 2, fetched)
}
