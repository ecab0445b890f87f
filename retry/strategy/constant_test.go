package strategy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-labs/dp-go-common/retry/strategy"
)

func TestConstant(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		testName             string
		initialDelay         int
		expectedOutputDelays []int
		wantErr              error
	}{
		{
			testName:             "one second",
			initialDelay:         1,
			expectedOutputDelays: []int{1, 1, 1, 1, 1},
		},
		{
			testName:             "four seconds",
			initialDelay:         4,
			expectedOutputDelays: []int{4, 4, 4, 4, 4},
		},
		{
			testName:             "zero seconds",
			initialDelay:         0,
			expectedOutputDelays: []int{0, 0, 0, 0, 0},
		},
		{
			testName:     "negative seconds",
			initialDelay: -100,
			wantErr:      strategy.ErrInvalidInitialDelay,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			t.Parallel()

			initial := time.Duration(tc.initialDelay) * time.Second
			factory, err := strategy.NewConstant(initial, strategy.WithoutJitter())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			// the factory must produce an identical strategy on every call
			for range 3 {
				s := factory()
				for _, expected := range tc.expectedOutputDelays {
					assert.Equal(t, expected, int(s.NextDelay().Seconds()))
				}
			}
		})
	}
}
