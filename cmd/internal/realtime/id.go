package realtime

import (
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/ids"
)

// NewConnID returns a ULID identifying one websocket connection.
func NewConnID(now time.Time) string { return ids.MustNew(now) }

// NewEnvelopeID returns a ULID used as envelope id.
func NewEnvelopeID(now time.Time) string { return ids.MustNew(now) }
