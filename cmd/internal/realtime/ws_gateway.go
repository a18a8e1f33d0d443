// Package realtime is the websocket transport for consent sessions.
//
// A connection binds to one participant with hello, then streams position
// updates and consent actions. Every session notification is pushed to both
// participants of the pair.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/pairing"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/proximity"
	v1 "github.com/Jeshuah71/consent-proximity-vr/shared/contracts/consent/v1"

	"github.com/coder/websocket"
	"gonum.org/v1/gonum/spatial/r3"
)

var errBadJSON = errors.New("invalid JSON")

// Gateway is the websocket entrypoint.
//
// It enforces origin policy, subprotocol selection, rate limits and
// heartbeats, and routes validated envelopes to the pairing registry and the
// proximity space.
type Gateway struct {
	log   *slog.Logger
	cfg   GatewayConfig
	hub   *Hub
	reg   *pairing.Registry
	space *proximity.Space

	patterns []string

	mu    sync.Mutex
	conns map[string]*Client
}

// NewGateway wires a gateway over reg and space and subscribes it to every
// session notification.
func NewGateway(log *slog.Logger, cfg GatewayConfig, reg *pairing.Registry, space *proximity.Space) (*Gateway, error) {
	if reg == nil || space == nil {
		return nil, errors.New("realtime: gateway needs a registry and a space")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg = cfg.normalized()

	g := &Gateway{
		log:      log,
		cfg:      cfg,
		hub:      NewHub(log),
		reg:      reg,
		space:    space,
		patterns: originPatterns(cfg.AllowedOrigins),
		conns:    make(map[string]*Client),
	}
	reg.OnEvent(g.onSessionEvent)
	return g, nil
}

// Hub exposes the participant-to-connection index.
func (g *Gateway) Hub() *Hub { return g.hub }

// Close signals every live connection to shut down.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.conns {
		c.Close()
	}
}

// ServeHTTP upgrades the request and runs the connection until it ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.patterns,
		InsecureSkipVerify: g.cfg.InsecureSkipVerify,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(NewConnID(time.Now()), g.cfg.SendQueueSize)
	g.track(client)
	defer g.untrack(client.ConnID)

	g.serveConn(r.Context(), conn, client)
}

func (g *Gateway) serveConn(parent context.Context, conn *websocket.Conn, client *Client) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := g.log.With("conn_id", client.ConnID)

	var closeOnce sync.Once
	// shutdown is idempotent. It never closes client.Send.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				shutdown(websocket.StatusGoingAway, "server shutdown")
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					log.Info("ws.ping.fail", "failures", failures, "err", err)
					if failures >= maxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)
	actionLog := log

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.sendError(client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				log.Info("ws.read.fail", "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if !rl.Allow(time.Now()) {
			g.writeFinalError(ctx, log, conn, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.sendError(client, "bad_envelope", err.Error())
			continue readLoop
		}

		if env.Type == v1.TypeHello {
			if err := g.onHello(client, env); err != nil {
				g.writeFinalError(ctx, log, conn, "hello_failed", err.Error())
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				break readLoop
			}
			actionLog = log.With("participant_id", client.Participant().String())
			continue readLoop
		}

		if client.Participant() == "" {
			g.sendError(client, "hello_required", "send hello first")
			continue readLoop
		}

		switch {
		case env.Type == v1.TypePositionUpdate:
			if err := g.onPosition(client, env); err != nil {
				g.sendError(client, "bad_payload", err.Error())
			}
		case env.Type == v1.TypePairOpen:
			g.onPairOpen(client, env)
		case env.Type == v1.TypePairSnapshot:
			g.onPairSnapshot(client, env)
		case v1.IsAction(env.Type):
			g.onAction(actionLog, client, env)
		default:
			g.sendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	// The read loop is the only binder, so unbinding here cannot race hello.
	if p := client.Participant(); p != "" {
		if g.hub.Unbind(p, client.ConnID) == 0 {
			g.space.Remove(p)
		}
	}

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

// ---- handlers ----

func (g *Gateway) onHello(client *Client, env v1.Envelope) error {
	var p v1.HelloPayload
	if err := decodePayload(env, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	id := consent.ParticipantID(strings.TrimSpace(p.ParticipantID))
	if len(id) > maxParticipantIDBytes {
		return fmt.Errorf("participant_id too long: max=%d bytes", maxParticipantIDBytes)
	}
	if cur := client.Participant(); cur != "" && cur != id {
		return fmt.Errorf("connection already bound to %q", cur)
	}

	if client.Participant() == "" {
		client.participant = id
		g.hub.Bind(id, client)
	}

	ack := newEnvelope(v1.TypeHelloAck, v1.HelloAckPayload{
		ConnID:        client.ConnID,
		ParticipantID: id.String(),
	})
	if !client.offer(ack) {
		return errors.New("backpressure: hello_ack")
	}
	return nil
}

func (g *Gateway) onPosition(client *Client, env v1.Envelope) error {
	var p v1.PositionUpdatePayload
	if err := decodePayload(env, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	g.space.Place(client.Participant(), r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
	return nil
}

func (g *Gateway) onPairOpen(client *Client, env v1.Envelope) {
	peer, err := decodePeer(env)
	if err != nil {
		g.sendError(client, "bad_payload", err.Error())
		return
	}

	pair, err := g.reg.Open(client.Participant(), peer)
	if err != nil {
		g.sendAck(client, env.Type, pairing.NewPairKey(client.Participant(), peer), err, "")
		return
	}
	g.sendAck(client, env.Type, pair.Key(), nil, pair.Snapshot().State.String())
}

func (g *Gateway) onPairSnapshot(client *Client, env v1.Envelope) {
	peer, err := decodePeer(env)
	if err != nil {
		g.sendError(client, "bad_payload", err.Error())
		return
	}
	pair, ok := g.reg.Get(client.Participant(), peer)
	if !ok {
		g.sendError(client, "no_pair", "no session with peer")
		return
	}
	snap := snapshotPayload(pair.Key(), pair.Snapshot())
	snap.PeerConnected = g.hub.Connected(peer)
	client.offer(newEnvelope(v1.TypePairSnapshot, snap))
}

// onAction applies one consent action. Rejections are answered with an
// action_ack carrying the code; they never end the connection.
func (g *Gateway) onAction(log *slog.Logger, client *Client, env v1.Envelope) {
	peer, err := decodePeer(env)
	if err != nil {
		g.sendError(client, "bad_payload", err.Error())
		return
	}
	me := client.Participant()

	pair, ok := g.reg.Get(me, peer)
	if !ok {
		if pair, err = g.reg.Open(me, peer); err != nil {
			g.sendAck(client, env.Type, pairing.NewPairKey(me, peer), err, "")
			return
		}
	}

	var state consent.State
	err = pair.Do(func(s *consent.Session) error {
		defer func() { state = s.State() }()
		switch env.Type {
		case v1.TypeConsentRequest:
			return s.RequestConsent(me)
		case v1.TypeConsentAccept:
			return s.Accept(me)
		case v1.TypeConsentCancel:
			return s.Cancel(me)
		default:
			return s.Withdraw(me)
		}
	})
	if err != nil {
		log.Debug("ws.action.rejected", "type", env.Type, "pair_id", pair.Key().String(), "code", consent.Code(err))
	}
	g.sendAck(client, env.Type, pair.Key(), err, state.String())
}

// onSessionEvent runs under the pair lock; it only enqueues.
func (g *Gateway) onSessionEvent(ev consent.Event) {
	key := pairing.NewPairKey(ev.A, ev.B)

	var env v1.Envelope
	switch ev.Kind {
	case consent.EventStateChanged:
		env = newEnvelope(v1.TypeConsentState, v1.ConsentStatePayload{
			PairID:    key.String(),
			SessionID: ev.SessionID,
			A:         ev.A.String(),
			B:         ev.B.String(),
			From:      ev.From.String(),
			To:        ev.To.String(),
		})
	case consent.EventTerminated:
		env = newEnvelope(v1.TypeConsentTerminated, v1.ConsentTerminatedPayload{
			PairID:    key.String(),
			SessionID: ev.SessionID,
			Reason:    ev.Reason.String(),
		})
	default:
		return
	}

	g.hub.SendTo(ev.A, env)
	g.hub.SendTo(ev.B, env)
}

// ---- send helpers ----

func (g *Gateway) sendAck(client *Client, typ string, key pairing.PairKey, err error, state string) {
	p := v1.ActionAckPayload{
		Type:   typ,
		PairID: key.String(),
		OK:     err == nil,
		State:  state,
	}
	if err != nil {
		p.Code = consent.Code(err)
	}
	client.offer(newEnvelope(v1.TypeActionAck, p))
}

func (g *Gateway) sendError(client *Client, code, msg string) {
	client.offer(newEnvelope(v1.TypeError, v1.ErrorPayload{Code: code, Message: msg}))
}

// writeFinalError writes an error envelope directly on conn, bypassing the
// send queue, so it is on the wire before the close frame.
func (g *Gateway) writeFinalError(ctx context.Context, log *slog.Logger, conn *websocket.Conn, code, msg string) {
	env := newEnvelope(v1.TypeError, v1.ErrorPayload{Code: code, Message: msg})
	if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
		log.Info("ws.write.fail", "code", code, "err", err)
	}
}

func (g *Gateway) track(c *Client) {
	g.mu.Lock()
	g.conns[c.ConnID] = c
	g.mu.Unlock()
}

func (g *Gateway) untrack(connID string) {
	g.mu.Lock()
	delete(g.conns, connID)
	g.mu.Unlock()
}

func snapshotPayload(key pairing.PairKey, s consent.Snapshot) v1.PairSnapshotPayload {
	p := v1.PairSnapshotPayload{
		PairID:           key.String(),
		SessionID:        s.SessionID,
		A:                s.A.String(),
		B:                s.B.String(),
		State:            s.State.String(),
		Termination:      s.Termination.String(),
		Requester:        s.Requester.String(),
		RequestAgeMillis: s.RequestAge.Milliseconds(),
		InRange:          s.InRange,
		MaxRangeMeters:   s.MaxRangeMeters,
		RequestTimeoutMs: s.RequestTimeout.Milliseconds(),
	}
	if s.DistanceMeters != consent.Unresolved {
		d := s.DistanceMeters
		p.DistanceMeters = &d
	}
	return p
}

// ---- envelope IO ----

func newEnvelope(typ string, payload any) v1.Envelope {
	now := time.Now().UTC()
	b, _ := json.Marshal(payload)
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(now),
		TS:      now,
		Payload: b,
	}
}

func decodePayload(env v1.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return errors.New("missing field: payload")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func decodePeer(env v1.Envelope) (consent.ParticipantID, error) {
	var p v1.PeerPayload
	if err := decodePayload(env, &p); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	peer := strings.TrimSpace(p.Peer)
	if len(peer) > maxParticipantIDBytes {
		return "", fmt.Errorf("peer too long: max=%d bytes", maxParticipantIDBytes)
	}
	return consent.ParticipantID(peer), nil
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	switch {
	case errors.Is(err, errBadJSON):
		return readErrBadJSON
	case websocket.CloseStatus(err) != -1:
		return readErrClose
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return readErrCtxDone
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		return readErrConnClosed
	default:
		return readErrUnknown
	}
}
