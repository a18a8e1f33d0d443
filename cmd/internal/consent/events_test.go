package consent

import (
	"testing"
	"time"
)

func TestEvents_QueuesTransitionsAndTermination(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, 2, 5*time.Second)
	ch, cancel := s.Events(8)
	defer cancel()

	s.SetInRange(true)
	if err := s.Withdraw(pB); err != nil {
		t.Fatalf("Withdraw(B): %v", err)
	}

	want := []Event{
		{Kind: EventStateChanged, SessionID: "test-session", A: pA, B: pB, From: StateIdle, To: StateInRange},
		{Kind: EventStateChanged, SessionID: "test-session", A: pA, B: pB, From: StateInRange, To: StateTerminated},
		{Kind: EventTerminated, SessionID: "test-session", A: pA, B: pB, From: StateTerminated, To: StateTerminated, Reason: ReasonWithdrawnConsent},
	}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("event[%d]=%+v want=%+v", i, got, w)
			}
		default:
			t.Fatalf("missing event[%d]", i)
		}
	}
}

func TestEvents_DropsWhenFull(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, 2, 5*time.Second)
	ch, cancel := s.Events(1)
	defer cancel()

	s.SetInRange(true)
	s.SetInRange(false)
	s.SetInRange(true)

	if len(ch) != 1 {
		t.Fatalf("len(ch)=%d want=1", len(ch))
	}
	if got := <-ch; got.To != StateInRange || got.From != StateIdle {
		t.Fatalf("kept event %+v, want the first one", got)
	}
}

func TestEvents_CancelClosesAndUnsubscribes(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, 2, 5*time.Second)
	ch, cancel := s.Events(4)

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}

	// Must not panic on a closed channel.
	s.SetInRange(true)
}
