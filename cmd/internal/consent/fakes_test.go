package consent

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now += d }

type fakeDistance struct {
	meters float64
}

func (f *fakeDistance) DistanceMeters(_, _ ParticipantID) float64 { return f.meters }

const (
	pA ParticipantID = "A"
	pB ParticipantID = "B"
)

type recorder struct {
	transitions []Transition
	reasons     []Reason
	order       []string
}

func (r *recorder) attach(s *Session) {
	s.OnStateChange(func(tr Transition) {
		r.transitions = append(r.transitions, tr)
		r.order = append(r.order, "state:"+tr.To.String())
	})
	s.OnTerminated(func(reason Reason) {
		r.reasons = append(r.reasons, reason)
		r.order = append(r.order, "terminated:"+reason.String())
	})
}

func newTestSession(t *testing.T, maxRange float64, timeout time.Duration) (*Session, *fakeClock, *fakeDistance) {
	t.Helper()

	clock := &fakeClock{}
	dist := &fakeDistance{meters: 1}
	s, err := New(pA, pB, Config{MaxRangeMeters: maxRange, RequestTimeout: timeout}, clock, dist, WithID("test-session"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clock, dist
}

func nan() float64 { return math.NaN() }
