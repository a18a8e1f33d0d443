// Package ids provides the ULID primitives used for session and envelope identifiers.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a 26-char ULID for the given time.
// IDs minted within the same millisecond stay strictly ordered.
func New(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustNew is New for call sites that cannot surface an error.
// If the monotonic source overflows it falls back to ulid.Make, which keeps
// the library's own random entropy but loses ordering against New.
func MustNew(now time.Time) string {
	id, err := New(now)
	if err != nil {
		return ulid.Make().String()
	}
	return id
}
