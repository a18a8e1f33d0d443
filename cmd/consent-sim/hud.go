package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

// frame is one HUD line: the session view at a simulated instant.
type frame struct {
	T           float64  `json:"t"`
	Event       string   `json:"event"`
	Detail      string   `json:"detail,omitempty"`
	Distance    *float64 `json:"distance_m,omitempty"`
	MaxRange    float64  `json:"max_range_m"`
	State       string   `json:"state"`
	Termination string   `json:"termination"`
	Requester   string   `json:"requester,omitempty"`
	Mover       string   `json:"mover"`
}

// hud renders frames as aligned text or JSON lines. The first write error
// is kept and later writes are skipped.
type hud struct {
	w      io.Writer
	json   bool
	frames []frame
	err    error
}

func newHUD(w io.Writer, asJSON bool) *hud {
	return &hud{w: w, json: asJSON}
}

func (h *hud) transition(f frame, tr consent.Transition) {
	f.Event = "transition"
	f.Detail = tr.From.String() + " -> " + tr.To.String()
	h.emit(f)
}

func (h *hud) action(f frame, a action, err error) {
	f.Event = "action"
	f.Detail = a.String() + ": ok"
	if err != nil {
		f.Detail = a.String() + ": rejected (" + consent.Code(err) + ")"
	}
	h.emit(f)
}

func (h *hud) final(f frame) {
	f.Event = "final"
	h.emit(f)
}

func (h *hud) emit(f frame) {
	h.frames = append(h.frames, f)
	if h.err != nil {
		return
	}
	if h.json {
		b, err := json.Marshal(f)
		if err != nil {
			h.err = err
			return
		}
		_, h.err = fmt.Fprintf(h.w, "%s\n", b)
		return
	}

	dist := "--"
	if f.Distance != nil {
		dist = fmt.Sprintf("%.2f", *f.Distance)
	}
	requester := f.Requester
	if requester == "" {
		requester = "-"
	}
	_, h.err = fmt.Fprintf(h.w, "t=%6.2fs  dist=%sm/%.2fm  state=%-10s  term=%-17s  requester=%-2s  mover=%-7s  %-10s  %s\n",
		f.T, dist, f.MaxRange, f.State, f.Termination, requester, f.Mover, f.Event, f.Detail)
}
