// Package consent implements the two-party consent state machine.
//
// A Session gates an interaction between exactly two participants behind an
// explicit request/accept handshake:
//
//	Idle -> InRange -> Requested -> Active -> Terminated
//
// The session is re-validated against distance (via a DistanceOracle) and time
// (via a Clock) every time the integration layer calls Tick. Terminated is
// absorbing; a new interaction needs a new Session.
//
// The package performs no I/O, starts no goroutines and takes no locks.
// Callers serialize access to a Session.
package consent
