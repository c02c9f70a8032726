package costmap2d

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
)

// Observation is an ephemeral bundle of range-sensor returns, already
// expressed in the costmap's reference frame.
type Observation struct {
	// Origin is the sensor position the rays emanate from.
	Origin r3.Vector
	// Points are the obstacle returns.
	Points []r3.Vector
	// ObstacleRange is the maximum trusted distance for marking obstacles;
	// farther points still clear along their rays.
	ObstacleRange float64
	// RaytraceRange is the maximum trusted distance for clearing free space.
	RaytraceRange float64
	// MinHeight and MaxHeight gate which points may mark obstacles. Points
	// outside the gate never mark but still clear.
	MinHeight float64
	MaxHeight float64
}

type timestampedObservation struct {
	Observation
	stamp time.Time
}

// ObservationBuffer collects observations from one sensor source across
// cycles. Sensor callbacks only ever lock the buffer, never the grid; the
// obstacle layer drains the buffer when it next runs, so an observation
// delivered mid-cycle is included no later than the following cycle.
type ObservationBuffer struct {
	mu     sync.Mutex
	name   string
	logger golog.Logger
	clk    clock.Clock

	// keepDuration is how long observations stay usable; zero keeps only
	// the most recent one.
	keepDuration time.Duration
	// expectedUpdateRate is the longest acceptable gap between deliveries;
	// zero disables the freshness check.
	expectedUpdateRate time.Duration

	observations []timestampedObservation
	lastUpdated  time.Time
}

// NewObservationBuffer returns a buffer for one sensor source.
func NewObservationBuffer(
	name string,
	keepDuration, expectedUpdateRate time.Duration,
	clk clock.Clock,
	logger golog.Logger,
) *ObservationBuffer {
	return &ObservationBuffer{
		name:               name,
		logger:             logger,
		clk:                clk,
		keepDuration:       keepDuration,
		expectedUpdateRate: expectedUpdateRate,
		lastUpdated:        clk.Now(),
	}
}

// Name returns the source name the buffer was configured with.
func (b *ObservationBuffer) Name() string { return b.name }

// Buffer stores an observation stamped with the current time.
func (b *ObservationBuffer) Buffer(obs Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUpdated = b.clk.Now()
	b.observations = append(b.observations, timestampedObservation{obs, b.lastUpdated})
	b.purge()
}

// Observations returns the usable observations, dropping any that have
// expired.
func (b *ObservationBuffer) Observations() []Observation {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purge()
	out := make([]Observation, 0, len(b.observations))
	for _, to := range b.observations {
		out = append(out, to.Observation)
	}
	return out
}

// purge drops stale observations. Callers must hold the buffer lock.
func (b *ObservationBuffer) purge() {
	if len(b.observations) == 0 {
		return
	}
	if b.keepDuration == 0 {
		b.observations = b.observations[len(b.observations)-1:]
		return
	}
	cutoff := b.clk.Now().Add(-b.keepDuration)
	kept := b.observations[:0]
	for _, to := range b.observations {
		if to.stamp.Before(cutoff) {
			b.logger.Debugw("dropping expired observation", "source", b.name)
			continue
		}
		kept = append(kept, to)
	}
	b.observations = kept
}

// IsCurrent reports whether the source has delivered within its expected
// update rate.
func (b *ObservationBuffer) IsCurrent() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expectedUpdateRate == 0 {
		return true
	}
	elapsed := b.clk.Now().Sub(b.lastUpdated)
	if elapsed > b.expectedUpdateRate {
		b.logger.Warnw("observation source is stale",
			"source", b.name,
			"elapsed", elapsed,
			"expected", b.expectedUpdateRate)
		return false
	}
	return true
}
