package consent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned by New for missing or malformed collaborators.
	ErrInvalidInput = errors.New("consent: invalid input")
	// ErrConfig is returned for invalid session configuration.
	ErrConfig = errors.New("consent: invalid config")

	ErrWrongState       = errors.New("wrong state")
	ErrNotInRange       = errors.New("not in range")
	ErrNotParticipant   = errors.New("not a participant")
	ErrSelfAccept       = errors.New("requester cannot accept own request")
	ErrNotRequester     = errors.New("not the requester")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrTerminated       = errors.New("session terminated")
	ErrReentrant        = errors.New("re-entrant call from listener")

	// ErrDistanceExceeded is returned by Accept when the distance check
	// failed and the session was terminated as a result.
	ErrDistanceExceeded = errors.New("distance exceeded")
)

// RejectedError reports a mutator whose guard failed.
// Kind is one of the sentinel errors above.
type RejectedError struct {
	Op    string
	Kind  error
	State State
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %v (state=%s)", e.Op, e.Kind, e.State)
}

func (e *RejectedError) Unwrap() error { return e.Kind }

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// Code returns a stable snake_case code for err, or "" for nil.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWrongState):
		return "wrong_state"
	case errors.Is(err, ErrNotInRange):
		return "not_in_range"
	case errors.Is(err, ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, ErrSelfAccept):
		return "self_accept"
	case errors.Is(err, ErrNotRequester):
		return "not_requester"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrTerminated):
		return "terminated"
	case errors.Is(err, ErrReentrant):
		return "reentrant"
	case errors.Is(err, ErrDistanceExceeded):
		return "distance_exceeded"
	case errors.Is(err, ErrConfig):
		return "invalid_config"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
