package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNew_LengthAndValidity(t *testing.T) {
	t.Parallel()

	id, err := New(time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("len(id)=%d want=26", len(id))
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		t.Fatalf("ulid.ParseStrict(%q): %v", id, err)
	}
}

func TestNew_MonotonicWithinMillisecond(t *testing.T) {
	t.Parallel()

	now := time.Now()
	prev := MustNew(now)
	for i := 0; i < 100; i++ {
		next := MustNew(now)
		if next <= prev {
			t.Fatalf("ids not increasing: prev=%s next=%s", prev, next)
		}
		prev = next
	}
}
