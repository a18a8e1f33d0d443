package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/proximity"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	participantA consent.ParticipantID = "A"
	participantB consent.ParticipantID = "B"
)

type simConfig struct {
	Consent       consent.Config
	StartDistance float64
	Speed         float64
	StopDistance  float64
	Step          time.Duration
	Duration      time.Duration
	Moving        bool
	Actions       []action
}

func (c simConfig) validate() error {
	if err := c.Consent.Validate(); err != nil {
		return err
	}
	switch {
	case !(c.StartDistance >= 0) || math.IsInf(c.StartDistance, 0):
		return fmt.Errorf("start distance must be finite and non-negative, got %v", c.StartDistance)
	case !(c.Speed >= 0) || math.IsInf(c.Speed, 0):
		return fmt.Errorf("speed must be finite and non-negative, got %v", c.Speed)
	case !(c.StopDistance >= 0) || math.IsInf(c.StopDistance, 0):
		return fmt.Errorf("stop distance must be finite and non-negative, got %v", c.StopDistance)
	case c.Step <= 0:
		return fmt.Errorf("step must be positive, got %s", c.Step)
	case c.Duration < 0:
		return fmt.Errorf("duration must be non-negative, got %s", c.Duration)
	}
	return nil
}

// simClock is a manual consent.Clock advanced once per step.
type simClock struct{ now time.Duration }

func (c *simClock) Now() time.Duration { return c.now }
func (c *simClock) Advance(d time.Duration) { c.now += d }

type simulation struct {
	cfg     simConfig
	clock   *simClock
	space   *proximity.Space
	mover   *proximity.Mover
	session *consent.Session

	pending     []consent.Transition
	unsubscribe func()
}

// newSimulation places A at the origin and B StartDistance meters along +X.
// A is the mover.
func newSimulation(cfg simConfig) (*simulation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	space := proximity.NewSpace()
	space.Place(participantA, r3.Vec{})
	space.Place(participantB, r3.Vec{X: cfg.StartDistance})

	clock := &simClock{}
	session, err := consent.New(participantA, participantB, cfg.Consent, clock, space, consent.WithID("sim"))
	if err != nil {
		return nil, err
	}

	mover := proximity.NewMover(space, participantA, participantB)
	mover.SpeedMetersPerSec = cfg.Speed
	mover.StopDistance = cfg.StopDistance
	mover.Moving = cfg.Moving

	s := &simulation{
		cfg:     cfg,
		clock:   clock,
		space:   space,
		mover:   mover,
		session: session,
	}
	s.unsubscribe = session.OnStateChange(func(tr consent.Transition) {
		s.pending = append(s.pending, tr)
	})
	return s, nil
}

// Run steps the simulation until Duration elapses or the session terminates.
// Each step moves A, feeds the range signal, applies due script actions and
// ticks the session, in that order.
func (s *simulation) Run(h *hud) error {
	defer s.unsubscribe()

	steps := int(s.cfg.Duration / s.cfg.Step)
	next := 0
	for i := 0; i <= steps; i++ {
		if i > 0 {
			s.clock.Advance(s.cfg.Step)
			s.mover.Step(s.cfg.Step)
		}
		now := s.clock.Now()

		s.session.SetInRange(s.space.InRange(participantA, participantB, s.cfg.Consent.MaxRangeMeters))
		s.flush(h)

		for next < len(s.cfg.Actions) && s.cfg.Actions[next].At <= now {
			a := s.cfg.Actions[next]
			next++
			err := s.apply(a)
			h.action(s.frame(), a, err)
			s.flush(h)
		}

		s.session.Tick()
		s.flush(h)

		if s.session.State() == consent.StateTerminated {
			break
		}
	}

	h.final(s.frame())
	return h.err
}

func (s *simulation) apply(a action) error {
	switch a.Verb {
	case verbRequest:
		return s.session.RequestConsent(a.Who)
	case verbAccept:
		return s.session.Accept(a.Who)
	case verbCancel:
		return s.session.Cancel(a.Who)
	case verbWithdraw:
		return s.session.Withdraw(a.Who)
	case verbToggle:
		s.mover.Toggle()
		return nil
	case verbReset:
		s.mover.Reset()
		return nil
	default:
		return errors.New("unknown action")
	}
}

func (s *simulation) flush(h *hud) {
	if len(s.pending) == 0 {
		return
	}
	f := s.frame()
	for _, tr := range s.pending {
		h.transition(f, tr)
	}
	s.pending = s.pending[:0]
}

func (s *simulation) frame() frame {
	snap := s.session.Snapshot()
	f := frame{
		T:           s.clock.Now().Seconds(),
		MaxRange:    snap.MaxRangeMeters,
		State:       snap.State.String(),
		Termination: snap.Termination.String(),
		Requester:   string(snap.Requester),
		Mover:       "stopped",
	}
	if snap.DistanceMeters != consent.Unresolved {
		d := snap.DistanceMeters
		f.Distance = &d
	}
	if s.mover.Moving {
		f.Mover = "moving"
	}
	return f
}
