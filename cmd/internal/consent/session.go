package consent

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/ids"
)

const (
	opRequest  = "consent.RequestConsent"
	opAccept   = "consent.Accept"
	opCancel   = "consent.Cancel"
	opWithdraw = "consent.Withdraw"
)

// Session is the consent state machine for one pair of participants.
//
// A Session is not safe for concurrent use. State and request metadata are
// fully committed before listeners run, and mutators called from inside a
// listener are rejected with ErrReentrant.
type Session struct {
	id     string
	a, b   ParticipantID
	cfg    Config
	clock  Clock
	oracle DistanceOracle
	log    *slog.Logger

	state   State
	term    Termination
	inRange bool
	pending *pendingRequest

	subs        listeners
	dispatching bool
}

// pendingRequest exists only while the session is Requested.
type pendingRequest struct {
	requester ParticipantID
	openedAt  time.Duration
}

// Option configures a Session at construction.
type Option func(*Session)

// WithLogger sets the diagnostics logger (default: discard).
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithID overrides the generated ULID session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New constructs a Session in the Idle state.
// All four collaborators are mandatory; any missing or invalid one is an error.
func New(a, b ParticipantID, cfg Config, clock Clock, oracle DistanceOracle, opts ...Option) (*Session, error) {
	if !a.Valid() || !b.Valid() {
		return nil, fmt.Errorf("%w: participant ids must be non-empty", ErrInvalidInput)
	}
	if a == b {
		return nil, fmt.Errorf("%w: participants must be distinct, both are %q", ErrInvalidInput, a)
	}
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrInvalidInput)
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: nil distance oracle", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		a:      a,
		b:      b,
		cfg:    cfg,
		clock:  clock,
		oracle: oracle,
		log:    slog.New(slog.DiscardHandler),
		state:  StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.id == "" {
		s.id = ids.MustNew(time.Now())
	}
	s.log = s.log.With("session_id", s.id)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Participants returns the fixed pair (A, B).
func (s *Session) Participants() (ParticipantID, ParticipantID) { return s.a, s.b }

// Config returns the session parameters.
func (s *Session) Config() Config { return s.cfg }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Termination returns the recorded termination, unset until Terminated.
func (s *Session) Termination() Termination { return s.term }

// InRange returns the latest proximity flag from the range feed.
func (s *Session) InRange() bool { return s.inRange }

// Requester returns the participant who opened the pending request.
// It reports false unless the session is Requested.
func (s *Session) Requester() (ParticipantID, bool) {
	if s.state != StateRequested || s.pending == nil {
		return "", false
	}
	return s.pending.requester, true
}

// IsParticipant reports whether p is A or B.
func (s *Session) IsParticipant(p ParticipantID) bool { return p == s.a || p == s.b }

// Peer returns the other participant of the pair.
func (s *Session) Peer(p ParticipantID) (ParticipantID, bool) {
	switch p {
	case s.a:
		return s.b, true
	case s.b:
		return s.a, true
	}
	return "", false
}

// SetInRange records the range feed's latest signal.
//
// Losing range while Requested or Active terminates with DistanceExceeded.
// Otherwise it toggles Idle and InRange. Repeating a value is a no-op.
func (s *Session) SetInRange(inRange bool) {
	if s.dispatching {
		s.logReject("consent.SetInRange", ErrReentrant)
		return
	}
	if s.state == StateTerminated {
		return
	}

	s.inRange = inRange

	if !inRange && (s.state == StateRequested || s.state == StateActive) {
		s.terminate(ReasonDistanceExceeded)
		return
	}

	switch {
	case s.state == StateIdle && inRange:
		s.transition(StateInRange)
	case s.state == StateInRange && !inRange:
		s.transition(StateIdle)
	}
}

// RequestConsent opens a request on behalf of requester.
// It succeeds only from InRange while the proximity flag is set. A request
// while Requested or Active is a duplicate and changes nothing.
func (s *Session) RequestConsent(requester ParticipantID) error {
	if err := s.guard(opRequest); err != nil {
		return err
	}

	switch s.state {
	case StateInRange:
	case StateRequested, StateActive:
		return s.reject(opRequest, ErrDuplicateRequest)
	default:
		return s.reject(opRequest, ErrWrongState)
	}
	if !s.inRange {
		return s.reject(opRequest, ErrNotInRange)
	}
	if !s.IsParticipant(requester) {
		return s.reject(opRequest, ErrNotParticipant)
	}

	s.pending = &pendingRequest{requester: requester, openedAt: s.clock.Now()}
	s.transition(StateRequested)
	return nil
}

// Accept grants the pending request on behalf of accepter, who must be the
// other participant.
//
// Distance is re-validated first. If it is exceeded the session terminates
// with DistanceExceeded and Accept returns ErrDistanceExceeded: a non-nil
// error here does not always mean nothing happened.
func (s *Session) Accept(accepter ParticipantID) error {
	if err := s.guard(opAccept); err != nil {
		return err
	}
	if s.state != StateRequested || s.pending == nil {
		return s.reject(opAccept, ErrWrongState)
	}
	if !s.IsParticipant(accepter) {
		return s.reject(opAccept, ErrNotParticipant)
	}
	if accepter == s.pending.requester {
		return s.reject(opAccept, ErrSelfAccept)
	}

	if s.distanceExceeded() {
		s.terminate(ReasonDistanceExceeded)
		return fmt.Errorf("%s: %w", opAccept, ErrDistanceExceeded)
	}

	s.transition(StateActive)
	return nil
}

// Cancel withdraws the pending request. Only the original requester may cancel.
func (s *Session) Cancel(requester ParticipantID) error {
	if err := s.guard(opCancel); err != nil {
		return err
	}
	if s.state != StateRequested || s.pending == nil {
		return s.reject(opCancel, ErrWrongState)
	}
	if requester != s.pending.requester {
		return s.reject(opCancel, ErrNotRequester)
	}

	s.terminate(ReasonCancelled)
	return nil
}

// Withdraw terminates the session from any non-terminal state, including
// Idle and InRange.
func (s *Session) Withdraw(who ParticipantID) error {
	if err := s.guard(opWithdraw); err != nil {
		return err
	}
	if !s.IsParticipant(who) {
		return s.reject(opWithdraw, ErrNotParticipant)
	}

	s.terminate(ReasonWithdrawnConsent)
	return nil
}

// Tick enforces timeout and distance. It must be called at a regular cadence;
// a pending request only expires on the first Tick after its timeout.
//
// While Requested, timeout is checked before distance. While Active only
// distance is checked. Other states are a no-op.
func (s *Session) Tick() {
	if s.dispatching {
		s.logReject("consent.Tick", ErrReentrant)
		return
	}

	switch s.state {
	case StateRequested:
		if s.pending == nil {
			return
		}
		if s.clock.Now()-s.pending.openedAt >= s.cfg.RequestTimeout {
			s.terminate(ReasonTimeout)
			return
		}
		if s.distanceExceeded() {
			s.terminate(ReasonDistanceExceeded)
		}
	case StateActive:
		if s.distanceExceeded() {
			s.terminate(ReasonDistanceExceeded)
		}
	}
}

// Snapshot is a read-only view of a session, suitable for display or the wire.
type Snapshot struct {
	SessionID      string
	A, B           ParticipantID
	State          State
	Termination    Termination
	Requester      ParticipantID
	RequestAge     time.Duration
	InRange        bool
	DistanceMeters float64
	MaxRangeMeters float64
	RequestTimeout time.Duration
}

// Snapshot captures the current session view. It queries the clock and the
// distance oracle once each.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:      s.id,
		A:              s.a,
		B:              s.b,
		State:          s.state,
		Termination:    s.term,
		InRange:        s.inRange,
		DistanceMeters: s.oracle.DistanceMeters(s.a, s.b),
		MaxRangeMeters: s.cfg.MaxRangeMeters,
		RequestTimeout: s.cfg.RequestTimeout,
	}
	if r, ok := s.Requester(); ok {
		snap.Requester = r
		snap.RequestAge = s.clock.Now() - s.pending.openedAt
	}
	return snap
}

// ---- internals ----

func (s *Session) guard(op string) error {
	if s.dispatching {
		return s.reject(op, ErrReentrant)
	}
	if s.state == StateTerminated {
		return s.reject(op, ErrTerminated)
	}
	return nil
}

func (s *Session) reject(op string, kind error) error {
	s.logReject(op, kind)
	return &RejectedError{Op: op, Kind: kind, State: s.state}
}

func (s *Session) logReject(op string, kind error) {
	s.log.Debug("consent.reject", "op", op, "kind", kind.Error(), "state", s.state.String())
}

// distanceExceeded treats NaN like an unresolved participant.
func (s *Session) distanceExceeded() bool {
	d := s.oracle.DistanceMeters(s.a, s.b)
	return math.IsNaN(d) || d > s.cfg.MaxRangeMeters
}

func (s *Session) transition(next State) {
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next
	if next != StateRequested {
		s.pending = nil
	}

	s.log.Debug("consent.transition", "from", prev.String(), "to", next.String())
	s.dispatchTransition(prev, next)
}

func (s *Session) terminate(reason Reason) {
	prev := s.state
	s.pending = nil
	s.term = Terminated(reason)
	s.state = StateTerminated

	s.log.Info("consent.terminated", "from", prev.String(), "reason", reason.String())
	s.dispatchTransition(prev, StateTerminated)
	s.dispatchTermination(reason)
}
