package consent

import "strings"

// ParticipantID is an opaque participant identity, compared by value.
type ParticipantID string

// String implements fmt.Stringer.
func (p ParticipantID) String() string { return string(p) }

// Valid reports whether p is usable as a participant identity.
func (p ParticipantID) Valid() bool { return strings.TrimSpace(string(p)) != "" }
