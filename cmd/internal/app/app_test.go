package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/realtime"
)

func testConfig() Config {
	return Config{
		HTTPAddr:         "127.0.0.1:0",
		TickInterval:     10 * time.Millisecond,
		RetainTerminated: time.Second,
		MetricsEnabled:   true,
		Consent:          consent.DefaultConfig(),
		Gateway:          realtime.DefaultGatewayConfig(),
	}
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://consent.example.com", want: "wss://consent.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestApp_Routes(t *testing.T) {
	a := newTestApp(t, testConfig())
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	if code, body := get(t, ts.URL+"/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Fatalf("/healthz=%d %q", code, body)
	}
	if code, _ := get(t, ts.URL+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz before driver start=%d want=503", code)
	}

	a.ready.Store(true)
	if code, _ := get(t, ts.URL+"/readyz"); code != http.StatusOK {
		t.Fatalf("/readyz with driver running=%d want=200", code)
	}

	if _, err := a.reg.Open("A", "B"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	code, body := get(t, ts.URL+"/v1/pairs")
	if code != http.StatusOK {
		t.Fatalf("/v1/pairs=%d", code)
	}
	var out struct {
		Pairs []pairView `json:"pairs"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode /v1/pairs: %v", err)
	}
	if len(out.Pairs) != 1 || out.Pairs[0].PairID != "A|B" || out.Pairs[0].State != "idle" {
		t.Fatalf("/v1/pairs=%+v", out.Pairs)
	}
	if out.Pairs[0].DistanceMeters != nil {
		t.Fatalf("distance for unplaced participants=%v want nil", *out.Pairs[0].DistanceMeters)
	}

	code, body = get(t, ts.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("/metrics=%d", code)
	}
	for _, want := range []string{"consent_sessions", "consent_sweep_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("/metrics missing %q", want)
		}
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	a := newTestApp(t, cfg)

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	if code, _ := get(t, ts.URL+"/metrics"); code != http.StatusNotFound {
		t.Fatalf("/metrics with metrics disabled=%d want=404", code)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !a.ready.Load() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("driver never reported ready")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run err=%v want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if a.ready.Load() {
		t.Fatalf("ready still set after Run returned")
	}
}

func TestNew_RejectsBadConsentConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Consent.MaxRangeMeters = 0
	if _, err := New(cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("New accepted zero max range")
	}
}
