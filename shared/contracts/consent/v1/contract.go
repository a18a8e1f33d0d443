// Package v1 defines the consent realtime protocol v1 contract.
//
// It is shared between server and clients so the wire format has one
// authoritative definition. States and termination reasons travel as their
// snake_case names.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol clients must negotiate.
const Subprotocol = "consent.v1"

// Type constants (wire-stable).
const (
	// TypeHello binds the connection to a participant (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the binding (server -> client).
	TypeHelloAck = "hello_ack"

	// TypePositionUpdate reports the participant's position in meters (client -> server).
	TypePositionUpdate = "position_update"

	// TypePairOpen opens (or reopens) the session with a peer (client -> server).
	TypePairOpen = "pair_open"

	// Consent actions (client -> server). Each is answered by action_ack.
	TypeConsentRequest  = "consent_request"
	TypeConsentAccept   = "consent_accept"
	TypeConsentCancel   = "consent_cancel"
	TypeConsentWithdraw = "consent_withdraw"

	// TypePairSnapshot is a query (client -> server) and its answer (server -> client).
	TypePairSnapshot = "pair_snapshot"

	// TypeActionAck reports the outcome of an action (server -> client).
	TypeActionAck = "action_ack"

	// TypeConsentState is pushed to both participants on every transition.
	TypeConsentState = "consent_state"
	// TypeConsentTerminated is pushed to both participants once per session.
	TypeConsentTerminated = "consent_terminated"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitzero"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}
	if !KnownType(e.Type) {
		return fmt.Errorf("unknown type: %q", e.Type)
	}
	return nil
}

// KnownType reports whether typ is part of the protocol.
func KnownType(typ string) bool {
	switch typ {
	case TypeHello,
		TypeHelloAck,
		TypePositionUpdate,
		TypePairOpen,
		TypeConsentRequest,
		TypeConsentAccept,
		TypeConsentCancel,
		TypeConsentWithdraw,
		TypePairSnapshot,
		TypeActionAck,
		TypeConsentState,
		TypeConsentTerminated,
		TypeError:
		return true
	default:
		return false
	}
}

// IsAction reports whether typ is one of the four consent actions.
func IsAction(typ string) bool {
	switch typ {
	case TypeConsentRequest, TypeConsentAccept, TypeConsentCancel, TypeConsentWithdraw:
		return true
	default:
		return false
	}
}
