// Package pairing owns consent sessions: one per interacting pair of
// participants, created on demand and driven by a cadence loop that feeds
// range and time signals into each session.
package pairing

import (
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

// PairKey identifies an unordered pair of participants.
type PairKey struct {
	Lo, Hi consent.ParticipantID
}

// NewPairKey returns the same key for (a, b) and (b, a).
func NewPairKey(a, b consent.ParticipantID) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// String is the wire form of the key ("lo|hi").
func (k PairKey) String() string { return string(k.Lo) + "|" + string(k.Hi) }
