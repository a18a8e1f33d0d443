package realtime

import (
	"sync"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	v1 "github.com/Jeshuah71/consent-proximity-vr/shared/contracts/consent/v1"
)

// Client represents one connected websocket.
//
// Send is never closed by the server so concurrent fan-out cannot panic;
// done signals the connection goroutines to stop. Close is idempotent.
type Client struct {
	ConnID string
	Send   chan v1.Envelope

	// participant is set once on hello and only read by the connection read loop.
	participant consent.ParticipantID

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(connID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = minSendQueueSize
	}
	return &Client{
		ConnID: connID,
		Send:   make(chan v1.Envelope, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Participant returns the bound participant, or "" before hello.
func (c *Client) Participant() consent.ParticipantID { return c.participant }

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// offer enqueues env without blocking. It reports false when the queue is
// full or the client is closing.
func (c *Client) offer(env v1.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
