package application

import (
	"time"

	"go.uber.org/zap"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

const defaultMaxParallel = 8

type settings struct {
	maxParallel int
	maxMachines int
	logger      *zap.Logger
}

// Option configures reconcilers and the report composer.
type Option func(*settings)

// WithMaxParallel bounds concurrent per-machine computations.
func WithMaxParallel(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithMaxMachines caps how many machines one filtered report may reconcile. 0 disables the cap.
func WithMaxMachines(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxMachines = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{maxParallel: defaultMaxParallel, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
