package main

import (
	"fmt"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"github.com/spf13/cobra"
)

// scenario builds its own session from a fake clock and a fixed distance and
// returns an error describing the first mismatch.
type scenario struct {
	name string
	run  func() error
}

var scenarios = []scenario{
	{"happy path then withdraw", scenarioHappyPath},
	{"withdraw from idle", scenarioWithdrawFromIdle},
	{"request times out", scenarioTimeout},
	{"request from idle rejected", scenarioRequestFromIdle},
	{"requester cannot accept own request", scenarioSelfAccept},
	{"active session exceeds range on tick", scenarioDistanceExceeded},
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run the reference consent scenarios and report pass/fail",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, sc := range scenarios {
			if err := sc.run(); err != nil {
				failed++
				fmt.Fprintf(out, "FAIL  %s: %v\n", sc.name, err)
				continue
			}
			fmt.Fprintf(out, "PASS  %s\n", sc.name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
		}
		return nil
	},
}

type fixture struct {
	session *consent.Session
	clock   *simClock
	// meters is read by the session's distance oracle on every check.
	meters float64
}

func newFixture(maxRange float64, timeout time.Duration) (*fixture, error) {
	f := &fixture{clock: &simClock{}, meters: 1}
	oracle := consent.DistanceFunc(func(_, _ consent.ParticipantID) float64 { return f.meters })
	s, err := consent.New(participantA, participantB,
		consent.Config{MaxRangeMeters: maxRange, RequestTimeout: timeout},
		f.clock, oracle)
	if err != nil {
		return nil, err
	}
	f.session = s
	return f, nil
}

func (f *fixture) expectState(want consent.State) error {
	if got := f.session.State(); got != want {
		return fmt.Errorf("state=%s want=%s", got, want)
	}
	return nil
}

func (f *fixture) expectTerminated(want consent.Reason) error {
	if err := f.expectState(consent.StateTerminated); err != nil {
		return err
	}
	got, ok := f.session.Termination().Reason()
	if !ok || got != want {
		return fmt.Errorf("termination=%s want=%s", f.session.Termination(), want)
	}
	return nil
}

func expectOK(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func expectRejected(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: succeeded, want rejection", op)
	}
	return nil
}

func scenarioHappyPath() error {
	f, err := newFixture(2, 5*time.Second)
	if err != nil {
		return err
	}
	f.session.SetInRange(true)
	if err := f.expectState(consent.StateInRange); err != nil {
		return err
	}
	if err := expectOK("request(A)", f.session.RequestConsent(participantA)); err != nil {
		return err
	}
	if err := f.expectState(consent.StateRequested); err != nil {
		return err
	}
	if err := expectOK("accept(B)", f.session.Accept(participantB)); err != nil {
		return err
	}
	if err := f.expectState(consent.StateActive); err != nil {
		return err
	}
	if err := expectOK("withdraw(A)", f.session.Withdraw(participantA)); err != nil {
		return err
	}
	return f.expectTerminated(consent.ReasonWithdrawnConsent)
}

func scenarioWithdrawFromIdle() error {
	f, err := newFixture(2, 5*time.Second)
	if err != nil {
		return err
	}
	if err := expectOK("withdraw(A)", f.session.Withdraw(participantA)); err != nil {
		return err
	}
	return f.expectTerminated(consent.ReasonWithdrawnConsent)
}

func scenarioTimeout() error {
	f, err := newFixture(2, 2*time.Second)
	if err != nil {
		return err
	}
	f.session.SetInRange(true)
	if err := expectOK("request(A)", f.session.RequestConsent(participantA)); err != nil {
		return err
	}
	f.clock.Advance(2100 * time.Millisecond)
	f.session.Tick()
	return f.expectTerminated(consent.ReasonTimeout)
}

func scenarioRequestFromIdle() error {
	f, err := newFixture(2, 5*time.Second)
	if err != nil {
		return err
	}
	if err := expectRejected("request(A)", f.session.RequestConsent(participantA)); err != nil {
		return err
	}
	return f.expectState(consent.StateIdle)
}

func scenarioSelfAccept() error {
	f, err := newFixture(2, 5*time.Second)
	if err != nil {
		return err
	}
	f.session.SetInRange(true)
	if err := expectOK("request(A)", f.session.RequestConsent(participantA)); err != nil {
		return err
	}
	if err := expectRejected("accept(A)", f.session.Accept(participantA)); err != nil {
		return err
	}
	return f.expectState(consent.StateRequested)
}

func scenarioDistanceExceeded() error {
	f, err := newFixture(2, 5*time.Second)
	if err != nil {
		return err
	}
	f.session.SetInRange(true)
	if err := expectOK("request(A)", f.session.RequestConsent(participantA)); err != nil {
		return err
	}
	if err := expectOK("accept(B)", f.session.Accept(participantB)); err != nil {
		return err
	}
	f.meters = 3
	f.session.Tick()
	return f.expectTerminated(consent.ReasonDistanceExceeded)
}
