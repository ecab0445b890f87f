package strategy

import (
	"time"

	"github.com/datapipe-labs/dp-go-common/retry/jitter"
)

// Exponential strategy multiplies the delay by a configurable base every
// iteration (with optional jitter). The default base is 2.
type Exponential struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	currentDelay time.Duration
	jitterFunc   jitter.Transformation
	base         int
}

// NewExponential creates a new exponential delay strategy factory.
func NewExponential(initialDelay, maxDelay time.Duration, opts ...Option) Factory {
	options := options{
		jitterFunc: jitter.Full(), // full jitter by default
		base:       2,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return func() Strategy {
		return &Exponential{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			jitterFunc:   options.jitterFunc,
			base:         options.base,
		}
	}
}

// NextDelay returns the next delay time.
func (s *Exponential) NextDelay() time.Duration {
	if s.currentDelay == 0 {
		s.currentDelay = s.initialDelay
	} else {
		s.currentDelay = min(s.currentDelay*time.Duration(s.base), s.maxDelay)
	}

	actualDelay := s.jitterFunc(s.currentDelay)
	return min(actualDelay, s.maxDelay)
}
