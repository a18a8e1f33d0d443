package consent

import (
	"math"
	"time"
)

// Clock supplies monotonic, non-decreasing elapsed time.
// The session only ever subtracts two readings.
type Clock interface {
	Now() time.Duration
}

// DistanceOracle reports the separation in meters between two participants.
// It must be symmetric and non-negative, and return Unresolved when either
// participant cannot be located.
type DistanceOracle interface {
	DistanceMeters(a, b ParticipantID) float64
}

// Unresolved is the distance reported for participants that cannot be located.
const Unresolved = math.MaxFloat64

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Duration

func (f ClockFunc) Now() time.Duration { return f() }

// DistanceFunc adapts a function to DistanceOracle.
type DistanceFunc func(a, b ParticipantID) float64

func (f DistanceFunc) DistanceMeters(a, b ParticipantID) float64 { return f(a, b) }

// SystemClock reads the process monotonic clock relative to its creation.
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a SystemClock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}
