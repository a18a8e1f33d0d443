package consent

import "fmt"

// State is the session state. Exactly one is active at a time.
type State uint8

const (
	StateIdle State = iota
	StateInRange
	StateRequested
	StateActive
	StateTerminated
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateInRange:    "in_range",
	StateRequested:  "requested",
	StateActive:     "active",
	StateTerminated: "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText encodes the state as its wire name.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("consent: invalid state %d", uint8(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a wire name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState maps a wire name back to a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("consent: unknown state %q", name)
}

// Reason is the cause recorded when a session terminates.
// Numeric values are stable.
type Reason uint8

const (
	ReasonUnknown          Reason = 0
	ReasonWithdrawnConsent Reason = 1
	ReasonTimeout          Reason = 2
	ReasonCancelled        Reason = 3
	ReasonDistanceExceeded Reason = 4
	ReasonDuplicateRequest Reason = 5
	ReasonInvalidAction    Reason = 6
)

var reasonNames = [...]string{
	ReasonUnknown:          "unknown",
	ReasonWithdrawnConsent: "withdrawn_consent",
	ReasonTimeout:          "timeout",
	ReasonCancelled:        "cancelled",
	ReasonDistanceExceeded: "distance_exceeded",
	ReasonDuplicateRequest: "duplicate_request",
	ReasonInvalidAction:    "invalid_action",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// MarshalText encodes the reason as its wire name.
func (r Reason) MarshalText() ([]byte, error) {
	if int(r) >= len(reasonNames) {
		return nil, fmt.Errorf("consent: invalid reason %d", uint8(r))
	}
	return []byte(reasonNames[r]), nil
}

// UnmarshalText decodes a wire name.
func (r *Reason) UnmarshalText(b []byte) error {
	v, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseReason maps a wire name back to a Reason.
func ParseReason(name string) (Reason, error) {
	for i, n := range reasonNames {
		if n == name {
			return Reason(i), nil
		}
	}
	return 0, fmt.Errorf("consent: unknown reason %q", name)
}

// Termination is either "not terminated" (the zero value) or
// "terminated with a reason". It is set once and never overwritten.
type Termination struct {
	reason Reason
	set    bool
}

// Terminated builds a Termination carrying r.
func Terminated(r Reason) Termination { return Termination{reason: r, set: true} }

// IsTerminated reports whether a reason has been recorded.
func (t Termination) IsTerminated() bool { return t.set }

// Reason returns the recorded reason and whether one is set.
func (t Termination) Reason() (Reason, bool) { return t.reason, t.set }

func (t Termination) String() string {
	if !t.set {
		return "none"
	}
	return t.reason.String()
}
