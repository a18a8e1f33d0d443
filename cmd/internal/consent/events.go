package consent

import (
	"slices"
	"sync"
)

// Transition is delivered to state-change listeners on every real transition.
type Transition struct {
	SessionID string
	From, To  State
}

// EventKind distinguishes the two notification kinds.
type EventKind uint8

const (
	EventStateChanged EventKind = iota + 1
	EventTerminated
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Event is the queued form of a notification, used by Events.
// Reason is only meaningful for EventTerminated.
type Event struct {
	Kind      EventKind
	SessionID string
	A, B      ParticipantID
	From, To  State
	Reason    Reason
}

type stateListener struct {
	id uint64
	fn func(Transition)
}

type termListener struct {
	id uint64
	fn func(Reason)
}

type listeners struct {
	next  uint64
	state []stateListener
	term  []termListener
}

// OnStateChange registers fn for every transition. Listeners run
// synchronously, in registration order, inside the call that caused the
// transition. The returned func unsubscribes and is safe to call twice.
func (s *Session) OnStateChange(fn func(Transition)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.subs.next++
	id := s.subs.next
	s.subs.state = append(s.subs.state, stateListener{id: id, fn: fn})

	return func() {
		s.subs.state = slices.DeleteFunc(s.subs.state, func(l stateListener) bool { return l.id == id })
	}
}

// OnTerminated registers fn for the single termination of the session.
// It fires after the state-change to Terminated.
func (s *Session) OnTerminated(fn func(Reason)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.subs.next++
	id := s.subs.next
	s.subs.term = append(s.subs.term, termListener{id: id, fn: fn})

	return func() {
		s.subs.term = slices.DeleteFunc(s.subs.term, func(l termListener) bool { return l.id == id })
	}
}

func (s *Session) dispatchTransition(from, to State) {
	if len(s.subs.state) == 0 {
		return
	}
	tr := Transition{SessionID: s.id, From: from, To: to}

	s.dispatching = true
	defer func() { s.dispatching = false }()
	for _, l := range slices.Clone(s.subs.state) {
		l.fn(tr)
	}
}

func (s *Session) dispatchTermination(r Reason) {
	if len(s.subs.term) == 0 {
		return
	}

	s.dispatching = true
	defer func() { s.dispatching = false }()
	for _, l := range slices.Clone(s.subs.term) {
		l.fn(r)
	}
}

// Events queues both notification kinds onto a buffered channel for
// consumers on other goroutines. Sends never block the session: when the
// buffer is full the event is dropped and logged. The returned cancel
// unsubscribes and closes the channel and is idempotent. Like every other
// Session method it must be serialized with the session's calls.
func (s *Session) Events(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	push := func(ev Event) {
		select {
		case ch <- ev:
		default:
			s.log.Warn("consent.events.drop", "kind", ev.Kind.String())
		}
	}

	offState := s.OnStateChange(func(tr Transition) {
		push(Event{Kind: EventStateChanged, SessionID: s.id, A: s.a, B: s.b, From: tr.From, To: tr.To})
	})
	offTerm := s.OnTerminated(func(r Reason) {
		push(Event{Kind: EventTerminated, SessionID: s.id, A: s.a, B: s.b, From: StateTerminated, To: StateTerminated, Reason: r})
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			offState()
			offTerm()
			close(ch)
		})
	}
}
