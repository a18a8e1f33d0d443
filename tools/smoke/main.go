// Package main provides a CI-friendly WebSocket smoke test for the consent gateway.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello/ack participant binding
//   - position updates driving the pair into range
//   - request -> accept -> withdraw with acks on the acting side
//   - consent_state and consent_terminated fanout to both participants
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "github.com/Jeshuah71/consent-proximity-vr/shared/contracts/consent/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name        string
	participant string
	conn        *websocket.Conn
	connID      string

	// states holds the last consent_state "to" seen per pair.
	states map[string]string

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	stamp := time.Now().UnixNano()
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "", "Origin header to send (empty for headset-style clients)")
		idA     = flag.String("a", fmt.Sprintf("smoke-a-%d", stamp), "Participant ID for client A")
		idB     = flag.String("b", fmt.Sprintf("smoke-b-%d", stamp), "Participant ID for client B")
		gap     = flag.Float64("distance", 1, "Distance between A and B in meters (must be within range)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if *idA == *idB {
		fatalf("-a and -b must differ")
	}

	root := context.Background()

	a := mustConnect(root, "A", *idA, *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *idB, *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s(%s) B=%s(%s)\n", a.participant, a.connID, b.participant, b.connID)
	}

	mustPlace(root, a, v1.PositionUpdatePayload{}, *timeout)
	mustPlace(root, b, v1.PositionUpdatePayload{X: *gap}, *timeout)

	pairID := mustAct(root, a, v1.TypePairOpen, b.participant, "", *timeout)
	a.mustAwaitState(root, pairID, "in_range", *timeout)
	b.mustAwaitState(root, pairID, "in_range", *timeout)
	if *verbose {
		fmt.Printf("in range: pair_id=%s\n", pairID)
	}

	mustAct(root, a, v1.TypeConsentRequest, b.participant, "requested", *timeout)
	b.mustAwaitState(root, pairID, "requested", *timeout)

	mustAct(root, b, v1.TypeConsentAccept, a.participant, "active", *timeout)
	a.mustAwaitState(root, pairID, "active", *timeout)

	mustAct(root, b, v1.TypeConsentWithdraw, a.participant, "terminated", *timeout)
	reasonA := a.mustAwaitTerminated(root, pairID, *timeout)
	reasonB := b.mustAwaitTerminated(root, pairID, *timeout)
	if reasonA != "withdrawn_consent" || reasonB != "withdrawn_consent" {
		fatalf("termination reason mismatch: A=%q B=%q want=%q", reasonA, reasonB, "withdrawn_consent")
	}

	fmt.Printf("OK: A=%s B=%s pair_id=%s reason=%s\n", a.participant, b.participant, pairID, reasonA)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, participant, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", name, got, v1.Subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:        name,
		participant: participant,
		conn:        conn,
		states:      make(map[string]string),
		inbox:       make(chan v1.Envelope, 512),
		errCh:       make(chan error, 1),
	}
	c.startReadLoop()

	mustWriteWithTimeout(parent, conn, newEnvelope(name+"-hello", v1.TypeHello, v1.HelloPayload{ParticipantID: participant}), stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeHelloAck, stepTimeout, nil)
	var p v1.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello_ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.ConnID) == "" {
		fatalf("hello_ack missing conn_id (%s)", name)
	}
	if p.ParticipantID != participant {
		fatalf("hello_ack participant mismatch (%s): got=%q want=%q", name, p.ParticipantID, participant)
	}
	c.connID = p.ConnID
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)
		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}
			if mt != websocket.MessageText {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

// mustPlace sends a position update. The gateway does not answer it.
func mustPlace(parent context.Context, c *smokeClient, pos v1.PositionUpdatePayload, stepTimeout time.Duration) {
	mustWriteWithTimeout(parent, c.conn, newEnvelope(c.name+"-position", v1.TypePositionUpdate, pos), stepTimeout)
}

// mustAct sends typ addressed to peer and asserts a successful action_ack.
// An empty wantState skips the state check. It returns the pair id.
func mustAct(parent context.Context, c *smokeClient, typ, peer, wantState string, stepTimeout time.Duration) string {
	mustWriteWithTimeout(parent, c.conn, newEnvelope(c.name+"-"+typ, typ, v1.PeerPayload{Peer: peer}), stepTimeout)

	skip := map[string]struct{}{v1.TypeConsentState: {}, v1.TypeConsentTerminated: {}}
	env := c.mustReadUntilType(parent, v1.TypeActionAck, stepTimeout, skip)

	var p v1.ActionAckPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal action_ack payload (%s): %v", c.name, err)
	}
	if p.Type != typ {
		fatalf("action_ack type mismatch (%s): got=%q want=%q", c.name, p.Type, typ)
	}
	if !p.OK {
		fatalf("%s rejected (%s): code=%q state=%q", typ, c.name, p.Code, p.State)
	}
	if wantState != "" && p.State != wantState {
		fatalf("%s state mismatch (%s): got=%q want=%q", typ, c.name, p.State, wantState)
	}
	if strings.TrimSpace(p.PairID) == "" {
		fatalf("action_ack missing pair_id (%s)", c.name)
	}
	return p.PairID
}

func (c *smokeClient) mustAwaitState(parent context.Context, pairID, want string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for c.states[pairID] != want {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for state %q (%s): last=%q", want, c.name, c.states[pairID])
		case err := <-c.errCh:
			fatalf("connection error while waiting for state %q (%s): %v", want, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for state %q (%s)", want, c.name)
			}
			c.observe(env)
		}
	}
}

func (c *smokeClient) mustAwaitTerminated(parent context.Context, pairID string, stepTimeout time.Duration) string {
	skip := map[string]struct{}{v1.TypeConsentState: {}, v1.TypeActionAck: {}}
	for {
		env := c.mustReadUntilType(parent, v1.TypeConsentTerminated, stepTimeout, skip)
		var p v1.ConsentTerminatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal consent_terminated payload (%s): %v", c.name, err)
		}
		if p.PairID == pairID {
			return p.Reason
		}
	}
}

// observe records consent_state and fails on server errors. Other types are ignored.
func (c *smokeClient) observe(env v1.Envelope) {
	switch env.Type {
	case v1.TypeConsentState:
		var p v1.ConsentStatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal consent_state payload (%s): %v", c.name, err)
		}
		c.states[p.PairID] = p.To
	case v1.TypeError:
		var ep v1.ErrorPayload
		_ = json.Unmarshal(env.Payload, &ep)
		fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			c.observe(env)
			if env.Type == wantType {
				return env
			}
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func newEnvelope(id, typ string, payload any) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      time.Now().UTC(),
		Payload: mustJSON(payload),
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
