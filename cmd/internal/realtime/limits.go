package realtime

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit). Consent envelopes are tiny.
	maxFrameBytes = 16 << 10 // 16 KiB

	// Max participant id length (bytes).
	maxParticipantIDBytes = 128
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window). Sized for position
	// updates at headset frame-sampling rates.
	rateLimitEvents = 600
	rateLimitWindow = 10 * time.Second
)

const (
	defaultSendQueueSize = 256
	minSendQueueSize     = 32

	defaultWriteTimeout = 5 * time.Second
	defaultReadIdle     = 2 * time.Minute
	closeGrace          = 1 * time.Second

	maxPingFailures = 3
)
