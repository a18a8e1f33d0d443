package v1

import (
	"errors"
	"math"
	"strings"
)

// ---- client -> server ----

// HelloPayload names the participant this connection speaks for.
type HelloPayload struct {
	ParticipantID string `json:"participant_id"`
}

func (p HelloPayload) Validate() error {
	if strings.TrimSpace(p.ParticipantID) == "" {
		return errors.New("missing field: participant_id")
	}
	return nil
}

// PositionUpdatePayload is a position in meters.
type PositionUpdatePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p PositionUpdatePayload) Validate() error {
	for _, c := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("position must be finite")
		}
	}
	return nil
}

// PeerPayload addresses the pair formed by the sender and Peer. It is the
// payload of pair_open, pair_snapshot queries and all consent actions.
type PeerPayload struct {
	Peer string `json:"peer"`
}

func (p PeerPayload) Validate() error {
	if strings.TrimSpace(p.Peer) == "" {
		return errors.New("missing field: peer")
	}
	return nil
}

// ---- server -> client ----

// HelloAckPayload confirms the binding and carries the connection id.
// ConnID names the socket, not a consent session.
type HelloAckPayload struct {
	ConnID        string `json:"conn_id"`
	ParticipantID string `json:"participant_id"`
}

// ActionAckPayload reports whether an action was applied. Code is empty on
// success and a stable rejection code otherwise.
type ActionAckPayload struct {
	Type   string `json:"type"`
	PairID string `json:"pair_id"`
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	// State is the session state after the action.
	State string `json:"state"`
}

// ConsentStatePayload announces a transition.
type ConsentStatePayload struct {
	PairID    string `json:"pair_id"`
	SessionID string `json:"session_id"`
	A         string `json:"a"`
	B         string `json:"b"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// ConsentTerminatedPayload announces a termination and its reason.
type ConsentTerminatedPayload struct {
	PairID    string `json:"pair_id"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// PairSnapshotPayload is a read-only view of one session.
type PairSnapshotPayload struct {
	PairID           string   `json:"pair_id"`
	SessionID        string   `json:"session_id"`
	A                string   `json:"a"`
	B                string   `json:"b"`
	State            string   `json:"state"`
	Termination      string   `json:"termination"`
	Requester        string   `json:"requester,omitempty"`
	RequestAgeMillis int64    `json:"request_age_ms,omitempty"`
	InRange          bool     `json:"in_range"`
	DistanceMeters   *float64 `json:"distance_m,omitempty"`
	MaxRangeMeters   float64  `json:"max_range_m"`
	RequestTimeoutMs int64    `json:"request_timeout_ms"`
	// PeerConnected is false once the other participant has no open socket.
	PeerConnected    bool     `json:"peer_connected"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
