// Package proximity is the range-sensing side of the integration layer.
//
// A Space tracks participant positions and answers distance and in-range
// queries; it implements consent.DistanceOracle. A Mover walks one
// participant toward another, for simulations and harnesses.
package proximity

import (
	"math"
	"sync"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"gonum.org/v1/gonum/spatial/r3"
)

// Space is a concurrency-safe registry of participant positions in meters.
type Space struct {
	mu        sync.RWMutex
	positions map[consent.ParticipantID]r3.Vec
}

var _ consent.DistanceOracle = (*Space)(nil)

// NewSpace returns an empty Space.
func NewSpace() *Space {
	return &Space{positions: make(map[consent.ParticipantID]r3.Vec)}
}

// Place sets (or moves) a participant's position.
// Non-finite coordinates are ignored.
func (s *Space) Place(id consent.ParticipantID, pos r3.Vec) bool {
	if !id.Valid() || !finite(pos) {
		return false
	}
	s.mu.Lock()
	s.positions[id] = pos
	s.mu.Unlock()
	return true
}

// Remove forgets a participant. Its distances become consent.Unresolved.
func (s *Space) Remove(id consent.ParticipantID) {
	s.mu.Lock()
	delete(s.positions, id)
	s.mu.Unlock()
}

// Position returns the last known position of id.
func (s *Space) Position(id consent.ParticipantID) (r3.Vec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok
}

// Len returns the number of placed participants.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// DistanceMeters returns the Euclidean distance between a and b, or
// consent.Unresolved if either is not placed.
func (s *Space) DistanceMeters(a, b consent.ParticipantID) float64 {
	s.mu.RLock()
	pa, okA := s.positions[a]
	pb, okB := s.positions[b]
	s.mu.RUnlock()

	if !okA || !okB {
		return consent.Unresolved
	}
	return r3.Norm(r3.Sub(pa, pb))
}

// InRange reports whether a and b are within maxRange meters of each other.
func (s *Space) InRange(a, b consent.ParticipantID, maxRange float64) bool {
	return s.DistanceMeters(a, b) <= maxRange
}

func finite(v r3.Vec) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
