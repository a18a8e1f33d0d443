package realtime

import (
	"log/slog"
	"sync"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	v1 "github.com/Jeshuah71/consent-proximity-vr/shared/contracts/consent/v1"
)

// Hub maps participants to their connected clients. A participant may be
// connected more than once (for example headset plus companion app).
//
// SendTo never blocks: a full client queue drops the envelope.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[consent.ParticipantID]map[string]*Client
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		log:     log,
		clients: make(map[consent.ParticipantID]map[string]*Client),
	}
}

// Bind attaches c to participant p.
func (h *Hub) Bind(p consent.ParticipantID, c *Client) {
	if h == nil || c == nil || !p.Valid() {
		return
	}

	h.mu.Lock()
	set, ok := h.clients[p]
	if !ok {
		set = make(map[string]*Client)
		h.clients[p] = set
	}
	set[c.ConnID] = c
	n := len(set)
	h.mu.Unlock()

	h.log.Info("hub.bind", "participant_id", p.String(), "conn_id", c.ConnID, "conns", n)
}

// Unbind detaches the connection and returns how many connections p still has.
func (h *Hub) Unbind(p consent.ParticipantID, connID string) int {
	if h == nil {
		return 0
	}

	h.mu.Lock()
	set := h.clients[p]
	delete(set, connID)
	n := len(set)
	if n == 0 {
		delete(h.clients, p)
	}
	h.mu.Unlock()

	h.log.Info("hub.unbind", "participant_id", p.String(), "conn_id", connID, "conns", n)
	return n
}

// Connected reports whether p has at least one connection.
func (h *Hub) Connected(p consent.ParticipantID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[p]) > 0
}

// SendTo fans env out to every connection of p and returns how many
// accepted it.
func (h *Hub) SendTo(p consent.ParticipantID, env v1.Envelope) int {
	if h == nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients[p] {
		if c.offer(env) {
			sent++
			continue
		}
		h.log.Warn("hub.send.drop", "participant_id", p.String(), "conn_id", c.ConnID, "type", env.Type)
	}
	return sent
}
