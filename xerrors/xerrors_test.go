package xerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-labs/dp-go-common/xerrors"
)

type recordInfo struct {
	Topic  string
	Offset int
}

func TestAttachNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, xerrors.Attach(recordInfo{}, nil))
}

func TestAttachAndLookup(t *testing.T) {
	t.Parallel()

	base := errors.New("decode failed")
	err := xerrors.Attach(recordInfo{Topic: "ingest", Offset: 42}, base)

	require.Error(t, err)
	assert.Equal(t, "decode failed", err.Error())
	assert.ErrorIs(t, err, base)

	info, ok := xerrors.Lookup[recordInfo](err)
	require.True(t, ok)
	assert.Equal(t, "ingest", info.Topic)
	assert.Equal(t, 42, info.Offset)
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()

	err := errors.New("plain")
	_, ok := xerrors.Lookup[recordInfo](err)
	assert.False(t, ok)

	_, ok = xerrors.Lookup[recordInfo](nil)
	assert.False(t, ok)
}

func TestLookupOutermostWins(t *testing.T) {
	t.Parallel()

	err := errors.New("base")
	err = xerrors.Attach(recordInfo{Offset: 1}, err)
	err = xerrors.Attach(recordInfo{Offset: 2}, err)
	err = fmt.Errorf("wrapped: %w", err)

	info, ok := xerrors.Lookup[recordInfo](err)
	require.True(t, ok)
	assert.Equal(t, 2, info.Offset)
}

func TestLookupThroughWrapping(t *testing.T) {
	t.Parallel()

	err := xerrors.Attach("payload", errors.New("base"))
	err = fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", err))

	data, ok := xerrors.Lookup[string](err)
	require.True(t, ok)
	assert.Equal(t, "payload", data)
}

func TestSplit(t *testing.T) {
	t.Parallel()

	errA := errors.New("a")
	errB := errors.New("b")

	tests := []struct {
		name     string
		err      error
		expected []error
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: nil,
		},
		{
			name:     "single error",
			err:      errA,
			expected: []error{errA},
		},
		{
			name:     "joined errors",
			err:      errors.Join(errA, errB),
			expected: []error{errA, errB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, xerrors.Split(tt.err))
		})
	}
}

func TestLeaves(t *testing.T) {
	t.Parallel()

	errA := errors.New("a")
	errB := errors.New("b")
	errC := errors.New("c")

	t.Run("nested joins are flattened", func(t *testing.T) {
		t.Parallel()
		err := errors.Join(errA, errors.Join(errB, errC))
		assert.Equal(t, []error{errA, errB, errC}, xerrors.Leaves(err))
	})

	t.Run("wrapped join is descended", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("outer: %w", errors.Join(errA, errB))
		assert.Len(t, xerrors.Leaves(err), 2)
	})

	t.Run("plain error is its own leaf", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []error{errA}, xerrors.Leaves(errA))
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, xerrors.Leaves(nil))
	})
}
