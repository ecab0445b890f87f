package collections_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapipe-labs/dp-go-common/collections"
)

func TestNewSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []int
		expected []int
	}{
		{
			name:     "empty set",
			input:    []int{},
			expected: nil,
		},
		{
			name:     "single element",
			input:    []int{1},
			expected: []int{1},
		},
		{
			name:     "multiple elements",
			input:    []int{1, 2, 3},
			expected: []int{1, 2, 3},
		},
		{
			name:     "duplicate elements",
			input:    []int{1, 2, 2, 3, 1},
			expected: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set := collections.NewSet(tt.input...)
			assert.ElementsMatch(t, tt.expected, set.Members())
		})
	}
}

func TestSetAdd(t *testing.T) {
	t.Parallel()

	set := collections.NewSet[int]()
	set.Add(1, 2, 3)

	assert.ElementsMatch(t, []int{1, 2, 3}, set.Members())
}

func TestSetAddSeq(t *testing.T) {
	t.Parallel()

	set := collections.NewSet[int]()
	values := []int{1, 2, 3, 4, 5}
	set.AddSeq(slices.Values(values))

	assert.ElementsMatch(t, values, set.Members())
}

func TestSetRemove(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3, 4, 5)
	set.Remove(2, 4)

	assert.ElementsMatch(t, []int{1, 3, 5}, set.Members())
}

func TestSetRemoveSeq(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3, 4, 5)
	toRemove := []int{2, 4}
	set.RemoveSeq(slices.Values(toRemove))

	assert.ElementsMatch(t, []int{1, 3, 5}, set.Members())
}

func TestSetContains(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)

	assert.True(t, set.Contains(1))
	assert.False(t, set.Contains(4))

	assert.True(t, set.Contains(1, 2))
	assert.True(t, set.Contains(1, 2, 3))
	assert.False(t, set.Contains(1, 4))
	assert.False(t, set.Contains(4, 5))

	// Vacuously true
	assert.True(t, set.Contains())
}

func TestSetContainsAny(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)

	assert.True(t, set.ContainsAny(1))
	assert.False(t, set.ContainsAny(4))

	assert.True(t, set.ContainsAny(1, 4))
	assert.True(t, set.ContainsAny(4, 2))
	assert.False(t, set.ContainsAny(4, 5, 6))

	// Vacuously false
	assert.False(t, set.ContainsAny())
}

func TestSetSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, collections.NewSet[int]().Size())
	assert.Equal(t, 1, collections.NewSet(1).Size())
	assert.Equal(t, 3, collections.NewSet(1, 2, 3).Size())
	assert.Equal(t, 3, collections.NewSet(1, 2, 3, 2, 1).Size())
}

func TestSetEqual(t *testing.T) {
	t.Parallel()

	set1 := collections.NewSet(1, 2, 3)
	set2 := collections.NewSet(3, 2, 1)    // Same elements, different order
	set3 := collections.NewSet(1, 2)       // Subset
	set4 := collections.NewSet(1, 2, 3, 4) // Superset
	empty1 := collections.NewSet[int]()
	empty2 := collections.NewSet[int]()

	assert.True(t, set1.Equal(set2))
	assert.True(t, set2.Equal(set1))
	assert.True(t, empty1.Equal(empty2))

	assert.False(t, set1.Equal(set3))
	assert.False(t, set1.Equal(set4))
	assert.False(t, set1.Equal(empty1))
	assert.False(t, empty1.Equal(set1))
}

func TestSetEmptyAndClear(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)
	assert.False(t, set.Empty())

	set.Clear()
	assert.True(t, set.Empty())
	assert.Equal(t, 0, set.Size())
	assert.ElementsMatch(t, []int{}, set.Members())
}

func TestSetClone(t *testing.T) {
	t.Parallel()

	original := collections.NewSet(1, 2, 3)
	clone := original.Clone()

	assert.True(t, original.Equal(clone))

	// Modifying clone should not affect original
	clone.Add(4)
	assert.False(t, original.Contains(4))
	assert.True(t, clone.Contains(4))

	// Modifying original should not affect clone
	original.Remove(1)
	assert.True(t, clone.Contains(1))
	assert.False(t, original.Contains(1))
}

func TestSetIter(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)
	result := make([]int, 0, 3)

	for v := range set.Iter() {
		result = append(result, v)
	}

	assert.ElementsMatch(t, []int{1, 2, 3}, result)
}

func TestSetString(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)
	str := set.String()

	// Output order is non-deterministic
	assert.Contains(t, str, "1")
	assert.Contains(t, str, "2")
	assert.Contains(t, str, "3")
}

func TestSetUnion(t *testing.T) {
	t.Parallel()

	set1 := collections.NewSet(1, 2, 3)
	set2 := collections.NewSet(3, 4, 5)

	result := set1.Union(set2)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, result.Members())

	// Original sets should be unchanged
	assert.ElementsMatch(t, []int{1, 2, 3}, set1.Members())
	assert.ElementsMatch(t, []int{3, 4, 5}, set2.Members())
}

func TestSetIntersection(t *testing.T) {
	t.Parallel()

	set1 := collections.NewSet(1, 2, 3, 4)
	set2 := collections.NewSet(3, 4, 5, 6)

	result := set1.Intersection(set2)

	assert.ElementsMatch(t, []int{3, 4}, result.Members())
}

func TestSetDifference(t *testing.T) {
	t.Parallel()

	set1 := collections.NewSet(1, 2, 3, 4)
	set2 := collections.NewSet(3, 4, 5, 6)

	result := set1.Difference(set2)

	assert.ElementsMatch(t, []int{1, 2}, result.Members())
}

func TestSetSymmetricDifference(t *testing.T) {
	t.Parallel()

	set1 := collections.NewSet(1, 2, 3, 4)
	set2 := collections.NewSet(3, 4, 5, 6)

	result := set1.SymmetricDifference(set2)
	assert.ElementsMatch(t, []int{1, 2, 5, 6}, result.Members())

	// Identical sets cancel out
	identical := collections.NewSet(1, 2, 3, 4)
	assert.True(t, set1.SymmetricDifference(identical).Empty())
}

func TestSetOperationsWithEmptySet(t *testing.T) {
	t.Parallel()

	empty := collections.NewSet[int]()
	nonEmpty := collections.NewSet(1, 2, 3)

	assert.ElementsMatch(t, []int{1, 2, 3}, empty.Union(nonEmpty).Members())
	assert.ElementsMatch(t, []int{1, 2, 3}, nonEmpty.Union(empty).Members())

	assert.ElementsMatch(t, []int{}, empty.Intersection(nonEmpty).Members())
	assert.ElementsMatch(t, []int{}, nonEmpty.Intersection(empty).Members())

	assert.ElementsMatch(t, []int{}, empty.Difference(nonEmpty).Members())
	assert.ElementsMatch(t, []int{1, 2, 3}, nonEmpty.Difference(empty).Members())
}

func TestSetFilter(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3, 4, 5, 6)

	result := set.Filter(func(n int) bool { return n%2 == 0 })

	assert.ElementsMatch(t, []int{2, 4, 6}, result.Members())
}

func TestTransformSet(t *testing.T) {
	t.Parallel()

	set := collections.NewSet(1, 2, 3)

	result := collections.TransformSet(set, func(n int) string {
		return []string{"zero", "one", "two", "three"}[n]
	})

	assert.ElementsMatch(t, []string{"one", "two", "three"}, result.Members())
}

func TestSetWithStrings(t *testing.T) {
	t.Parallel()

	set := collections.NewSet("apple", "banana", "cherry")
	assert.ElementsMatch(t, []string{"apple", "banana", "cherry"}, set.Members())

	set.Remove("banana")
	assert.ElementsMatch(t, []string{"apple", "cherry"}, set.Members())
}

func BenchmarkSetAdd(b *testing.B) {
	set := collections.NewSet[int]()

	for i := 0; b.Loop(); i++ {
		set.Add(i)
	}
}

func BenchmarkSetContains(b *testing.B) {
	set := collections.NewSet[int]()
	for i := range 1000 {
		set.Add(i)
	}

	for i := 0; b.Loop(); i++ {
		set.Contains(i % 1000)
	}
}

func BenchmarkSetIntersection(b *testing.B) {
	set1 := collections.NewSet[int]()
	set2 := collections.NewSet[int]()

	for i := range 500 {
		set1.Add(i)
		set2.Add(i + 250) // Some overlap
	}

	for b.Loop() {
		_ = set1.Intersection(set2)
	}
}
