package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

func testSimConfig(t *testing.T, script string) simConfig {
	t.Helper()

	actions, err := parseScript(script)
	if err != nil {
		t.Fatalf("parseScript(%q): %v", script, err)
	}
	return simConfig{
		Consent:       consent.DefaultConfig(),
		StartDistance: 4,
		Speed:         0.5,
		StopDistance:  0.5,
		Step:          100 * time.Millisecond,
		Duration:      12 * time.Second,
		Moving:        true,
		Actions:       actions,
	}
}

func runSim(t *testing.T, cfg simConfig) (*simulation, *hud, string) {
	t.Helper()

	sim, err := newSimulation(cfg)
	if err != nil {
		t.Fatalf("newSimulation: %v", err)
	}
	var buf bytes.Buffer
	h := newHUD(&buf, false)
	if err := sim.Run(h); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sim, h, buf.String()
}

func transitions(h *hud) []string {
	var out []string
	for _, f := range h.frames {
		if f.Event == "transition" {
			out = append(out, f.Detail)
		}
	}
	return out
}

func TestSimulation_DefaultScript(t *testing.T) {
	t.Parallel()

	sim, h, out := runSim(t, testSimConfig(t, defaultScript))

	want := []string{
		"idle -> in_range",
		"in_range -> requested",
		"requested -> active",
		"active -> terminated",
	}
	got := transitions(h)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("transitions=%v want=%v", got, want)
	}

	r, ok := sim.session.Termination().Reason()
	if !ok || r != consent.ReasonWithdrawnConsent {
		t.Fatalf("termination=%s want=%s", sim.session.Termination(), consent.ReasonWithdrawnConsent)
	}

	last := h.frames[len(h.frames)-1]
	if last.Event != "final" || last.Termination != "withdrawn_consent" {
		t.Fatalf("last frame=%+v", last)
	}
	if math.Abs(last.T-9) > 1e-9 {
		t.Fatalf("stopped at t=%v want=9", last.T)
	}
	if !strings.Contains(out, "withdraw by B: ok") {
		t.Fatalf("output missing withdraw line:\n%s", out)
	}
}

func TestSimulation_RequestOutOfRangeRejected(t *testing.T) {
	t.Parallel()

	cfg := testSimConfig(t, "1:request:A")
	cfg.Moving = false
	cfg.Duration = 2 * time.Second

	sim, h, out := runSim(t, cfg)

	if sim.session.State() != consent.StateIdle {
		t.Fatalf("state=%s want=%s", sim.session.State(), consent.StateIdle)
	}
	if len(transitions(h)) != 0 {
		t.Fatalf("unexpected transitions: %v", transitions(h))
	}
	if !strings.Contains(out, "request by A: rejected (wrong_state)") {
		t.Fatalf("output missing rejection:\n%s", out)
	}
}

func TestSimulation_RequestTimesOut(t *testing.T) {
	t.Parallel()

	cfg := testSimConfig(t, "0.5:request:B")
	cfg.StartDistance = 1
	cfg.Moving = false
	cfg.Consent.RequestTimeout = 2 * time.Second
	cfg.Duration = 5 * time.Second

	sim, h, _ := runSim(t, cfg)

	r, ok := sim.session.Termination().Reason()
	if !ok || r != consent.ReasonTimeout {
		t.Fatalf("termination=%s want=%s", sim.session.Termination(), consent.ReasonTimeout)
	}
	last := h.frames[len(h.frames)-1]
	if math.Abs(last.T-2.5) > 1e-9 {
		t.Fatalf("terminated at t=%v want=2.5", last.T)
	}
}

func TestSimulation_MoverStopsAtStopDistance(t *testing.T) {
	t.Parallel()

	cfg := testSimConfig(t, "")
	cfg.Duration = 10 * time.Second

	sim, h, _ := runSim(t, cfg)

	if d := sim.space.DistanceMeters(participantA, participantB); math.Abs(d-cfg.StopDistance) > 1e-9 {
		t.Fatalf("distance=%v want=%v", d, cfg.StopDistance)
	}
	if sim.session.State() != consent.StateInRange {
		t.Fatalf("state=%s want=%s", sim.session.State(), consent.StateInRange)
	}
	if got := transitions(h); len(got) != 1 || got[0] != "idle -> in_range" {
		t.Fatalf("transitions=%v", got)
	}
}

func TestSimulation_ToggleAndReset(t *testing.T) {
	t.Parallel()

	cfg := testSimConfig(t, "1:toggle")
	cfg.Speed = 1
	cfg.Duration = 3 * time.Second

	sim, h, _ := runSim(t, cfg)

	if d := sim.space.DistanceMeters(participantA, participantB); math.Abs(d-3) > 1e-6 {
		t.Fatalf("distance=%v want=3", d)
	}
	if last := h.frames[len(h.frames)-1]; last.Mover != "stopped" {
		t.Fatalf("mover=%q want=stopped", last.Mover)
	}

	cfg = testSimConfig(t, "3:reset")
	cfg.Speed = 1
	cfg.Duration = 4 * time.Second

	sim, h, _ = runSim(t, cfg)

	// A walked into range, then reset back to spawn; range loss from
	// in_range returns to idle.
	if d := sim.space.DistanceMeters(participantA, participantB); math.Abs(d-4) > 1e-9 {
		t.Fatalf("distance after reset=%v want=4", d)
	}
	if sim.session.State() != consent.StateIdle {
		t.Fatalf("state=%s want=%s (%v)", sim.session.State(), consent.StateIdle, transitions(h))
	}
}

func TestSimulation_JSONOutput(t *testing.T) {
	t.Parallel()

	sim, err := newSimulation(testSimConfig(t, defaultScript))
	if err != nil {
		t.Fatalf("newSimulation: %v", err)
	}
	var buf bytes.Buffer
	if err := sim.Run(newHUD(&buf, true)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var last frame
	lines := 0
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		lines++
		if err := json.Unmarshal(sc.Bytes(), &last); err != nil {
			t.Fatalf("line %d: %v (%s)", lines, err, sc.Text())
		}
	}
	if lines == 0 {
		t.Fatalf("no output")
	}
	if last.Event != "final" || last.State != "terminated" || last.Distance == nil {
		t.Fatalf("last frame=%+v", last)
	}
}

func TestSimConfigValidate(t *testing.T) {
	t.Parallel()

	base := testSimConfig(t, "")
	cases := map[string]func(*simConfig){
		"bad consent":    func(c *simConfig) { c.Consent.MaxRangeMeters = 0 },
		"negative start": func(c *simConfig) { c.StartDistance = -1 },
		"nan speed":      func(c *simConfig) { c.Speed = math.NaN() },
		"inf stop":       func(c *simConfig) { c.StopDistance = math.Inf(1) },
		"zero step":      func(c *simConfig) { c.Step = 0 },
		"negative run":   func(c *simConfig) { c.Duration = -time.Second },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, err := newSimulation(cfg); err == nil {
			t.Fatalf("%s: newSimulation succeeded, want error", name)
		}
	}
}
