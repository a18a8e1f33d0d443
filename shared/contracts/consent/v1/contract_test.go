package v1

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	cases := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{"ok", Envelope{V: Version, Type: TypeHello, TS: now}, ""},
		{"missing version", Envelope{Type: TypeHello}, "missing field: v"},
		{"wrong version", Envelope{V: "v2", Type: TypeHello}, "unsupported protocol version"},
		{"missing type", Envelope{V: Version}, "missing field: type"},
		{"unknown type", Envelope{V: Version, Type: "message_send"}, "unknown type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate()=%v want=nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate()=%v want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestIsAction(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{TypeConsentRequest, TypeConsentAccept, TypeConsentCancel, TypeConsentWithdraw} {
		if !IsAction(typ) {
			t.Fatalf("IsAction(%q)=false", typ)
		}
		if !KnownType(typ) {
			t.Fatalf("KnownType(%q)=false", typ)
		}
	}
	for _, typ := range []string{TypeHello, TypePairOpen, TypePairSnapshot, ""} {
		if IsAction(typ) {
			t.Fatalf("IsAction(%q)=true", typ)
		}
	}
}

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	if err := (HelloPayload{ParticipantID: "  "}).Validate(); err == nil {
		t.Fatalf("blank participant accepted")
	}
	if err := (PeerPayload{Peer: "B"}).Validate(); err != nil {
		t.Fatalf("PeerPayload.Validate()=%v", err)
	}
	if err := (PositionUpdatePayload{X: math.NaN()}).Validate(); err == nil {
		t.Fatalf("NaN position accepted")
	}
	if err := (PositionUpdatePayload{X: 1, Y: 2, Z: -3}).Validate(); err != nil {
		t.Fatalf("finite position rejected: %v", err)
	}
}

func TestEnvelopeOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Envelope{V: Version, Type: TypeHello})
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, `"id"`) || strings.Contains(s, `"payload"`) {
		t.Fatalf("empty fields serialized: %s", s)
	}
}
