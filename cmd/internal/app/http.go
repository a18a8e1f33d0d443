package app

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/pairing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !a.ready.Load() {
			http.Error(w, "driver not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.HandleFunc("GET /v1/pairs", a.handlePairs)

	if a.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{
			Registry:          a.metrics,
			EnableOpenMetrics: true,
		}))
	}

	mux.Handle("/ws", a.gw)
}

type pairView struct {
	PairID         string   `json:"pair_id"`
	SessionID      string   `json:"session_id"`
	A              string   `json:"a"`
	B              string   `json:"b"`
	State          string   `json:"state"`
	Termination    string   `json:"termination"`
	Requester      string   `json:"requester,omitempty"`
	InRange        bool     `json:"in_range"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}

// handlePairs is a read-only operator view of every tracked session.
func (a *App) handlePairs(w http.ResponseWriter, _ *http.Request) {
	snaps := a.reg.Pairs()
	out := make([]pairView, 0, len(snaps))
	for _, s := range snaps {
		v := pairView{
			PairID:      pairing.NewPairKey(s.A, s.B).String(),
			SessionID:   s.SessionID,
			A:           s.A.String(),
			B:           s.B.String(),
			State:       s.State.String(),
			Termination: s.Termination.String(),
			Requester:   s.Requester.String(),
			InRange:     s.InRange,
		}
		if d := s.DistanceMeters; d != consent.Unresolved {
			v.DistanceMeters = &d
		}
		out = append(out, v)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"pairs": out}); err != nil {
		a.log.Info("http.pairs.encode.fail", "err", err)
	}
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps an http(s) base URL to its ws(s) equivalent.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
