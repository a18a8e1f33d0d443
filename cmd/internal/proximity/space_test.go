package proximity

import (
	"math"
	"testing"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSpace_DistanceSymmetric(t *testing.T) {
	t.Parallel()

	s := NewSpace()
	s.Place("A", r3.Vec{X: 0, Y: 0, Z: 0})
	s.Place("B", r3.Vec{X: 3, Y: 4, Z: 0})

	if d := s.DistanceMeters("A", "B"); d != 5 {
		t.Fatalf("DistanceMeters(A,B)=%v want=5", d)
	}
	if d := s.DistanceMeters("B", "A"); d != 5 {
		t.Fatalf("DistanceMeters(B,A)=%v want=5", d)
	}
	if !s.InRange("A", "B", 5) {
		t.Fatalf("InRange at exact distance = false")
	}
	if s.InRange("A", "B", 4.99) {
		t.Fatalf("InRange below distance = true")
	}
}

func TestSpace_UnresolvedParticipants(t *testing.T) {
	t.Parallel()

	s := NewSpace()
	s.Place("A", r3.Vec{})

	if d := s.DistanceMeters("A", "B"); d != consent.Unresolved {
		t.Fatalf("distance to unknown=%v want Unresolved", d)
	}
	if s.InRange("A", "B", 1e6) {
		t.Fatalf("InRange with unknown participant = true")
	}

	s.Place("B", r3.Vec{X: 1})
	s.Remove("A")
	if d := s.DistanceMeters("A", "B"); d != consent.Unresolved {
		t.Fatalf("distance after Remove=%v want Unresolved", d)
	}
}

func TestSpace_PlaceRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := NewSpace()
	if s.Place("", r3.Vec{}) {
		t.Fatalf("Place accepted empty id")
	}
	if s.Place("A", r3.Vec{X: math.NaN()}) {
		t.Fatalf("Place accepted NaN")
	}
	if s.Place("A", r3.Vec{Y: math.Inf(-1)}) {
		t.Fatalf("Place accepted Inf")
	}
	if s.Len() != 0 {
		t.Fatalf("Len()=%d want=0", s.Len())
	}
}

func TestMover_ApproachesAndStops(t *testing.T) {
	t.Parallel()

	s := NewSpace()
	s.Place("A", r3.Vec{X: 0})
	s.Place("B", r3.Vec{X: 3})

	m := NewMover(s, "A", "B")
	if m.Step(time.Second) {
		t.Fatalf("stopped mover moved")
	}

	m.Toggle()
	if !m.Step(2 * time.Second) {
		t.Fatalf("mover did not move")
	}
	if d := s.DistanceMeters("A", "B"); math.Abs(d-2) > 1e-9 {
		t.Fatalf("distance after 2s=%v want=2", d)
	}

	for i := 0; i < 20; i++ {
		m.Step(time.Second)
	}
	if d := s.DistanceMeters("A", "B"); math.Abs(d-m.StopDistance) > 1e-9 {
		t.Fatalf("distance at rest=%v want=%v", d, m.StopDistance)
	}
	if m.Step(time.Second) {
		t.Fatalf("mover moved inside stop distance")
	}
}

func TestMover_Reset(t *testing.T) {
	t.Parallel()

	s := NewSpace()
	s.Place("A", r3.Vec{X: -2})
	s.Place("B", r3.Vec{X: 2})

	m := NewMover(s, "A", "B")
	m.Toggle()
	m.Step(3 * time.Second)
	m.Reset()

	if m.Moving {
		t.Fatalf("Reset left mover moving")
	}
	if p, _ := s.Position("A"); p != (r3.Vec{X: -2}) {
		t.Fatalf("position after Reset=%v", p)
	}
}
