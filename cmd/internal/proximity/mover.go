package proximity

import (
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mover walks one participant toward a target participant at a fixed speed,
// stopping once within StopDistance.
type Mover struct {
	Space  *Space
	Who    consent.ParticipantID
	Target consent.ParticipantID

	SpeedMetersPerSec float64
	StopDistance      float64

	Moving bool

	spawn    r3.Vec
	hasSpawn bool
}

// NewMover records the participant's current position as its spawn point.
// Defaults match a slow walk: 0.5 m/s, stop at 0.5 m.
func NewMover(space *Space, who, target consent.ParticipantID) *Mover {
	m := &Mover{
		Space:             space,
		Who:               who,
		Target:            target,
		SpeedMetersPerSec: 0.5,
		StopDistance:      0.5,
	}
	if p, ok := space.Position(who); ok {
		m.spawn = p
		m.hasSpawn = true
	}
	return m
}

// Toggle flips Moving and returns the new value.
func (m *Mover) Toggle() bool {
	m.Moving = !m.Moving
	return m.Moving
}

// Step advances the mover by dt. It reports whether the participant moved.
func (m *Mover) Step(dt time.Duration) bool {
	if !m.Moving || dt <= 0 {
		return false
	}
	from, ok := m.Space.Position(m.Who)
	if !ok {
		return false
	}
	to, ok := m.Space.Position(m.Target)
	if !ok {
		return false
	}

	gap := r3.Sub(to, from)
	dist := r3.Norm(gap)
	if dist <= m.StopDistance {
		return false
	}

	step := m.SpeedMetersPerSec * dt.Seconds()
	if remaining := dist - m.StopDistance; step > remaining {
		step = remaining
	}
	return m.Space.Place(m.Who, r3.Add(from, r3.Scale(step, r3.Unit(gap))))
}

// Reset returns the participant to its spawn point and stops moving.
func (m *Mover) Reset() {
	m.Moving = false
	if m.hasSpawn {
		m.Space.Place(m.Who, m.spawn)
	}
}
