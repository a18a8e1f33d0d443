package app

import (
	"errors"
	"testing"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"CONSENT_HTTP_ADDR", "CONSENT_LOG_FORMAT", "CONSENT_TICK_INTERVAL",
		"CONSENT_MAX_RANGE_METERS", "CONSENT_REQUEST_TIMEOUT", "CONSENT_WS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.LogFormat != "json" {
		t.Fatalf("addr/format=%q/%q", cfg.HTTPAddr, cfg.LogFormat)
	}
	if cfg.TickInterval != 100*time.Millisecond || cfg.RetainTerminated != 30*time.Second || cfg.RetainIdle != 2*time.Minute {
		t.Fatalf("tick/retain=%v/%v/%v", cfg.TickInterval, cfg.RetainTerminated, cfg.RetainIdle)
	}
	if cfg.Consent != consent.DefaultConfig() {
		t.Fatalf("consent=%+v want defaults", cfg.Consent)
	}
	if len(cfg.Gateway.AllowedOrigins) != 2 {
		t.Fatalf("allowed origins=%v", cfg.Gateway.AllowedOrigins)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CONSENT_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CONSENT_TICK_INTERVAL", "50ms")
	t.Setenv("CONSENT_METRICS_ENABLED", "false")
	t.Setenv("CONSENT_MAX_RANGE_METERS", "3.5")
	t.Setenv("CONSENT_WS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CONSENT_WS_RATE_EVENTS", "-4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" || cfg.TickInterval != 50*time.Millisecond || cfg.MetricsEnabled {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Consent.MaxRangeMeters != 3.5 {
		t.Fatalf("max range=%v want=3.5", cfg.Consent.MaxRangeMeters)
	}
	if got := cfg.Gateway.AllowedOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("allowed origins=%v", got)
	}
	if cfg.Gateway.RateEvents <= 0 {
		t.Fatalf("negative rate events not defaulted: %d", cfg.Gateway.RateEvents)
	}
}

func TestLoadConfig_InvalidConsentConfig(t *testing.T) {
	t.Setenv("CONSENT_REQUEST_TIMEOUT", "soon")

	if _, err := LoadConfig(); !errors.Is(err, consent.ErrConfig) {
		t.Fatalf("LoadConfig err=%v want ErrConfig", err)
	}
}

func TestEnvFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 2},
		{"1.25", 1.25},
		{"-1", 2},
		{"NaN", 2},
		{"+Inf", 2},
		{"abc", 2},
	}
	for _, tc := range cases {
		t.Setenv("CONSENT_TEST_FLOAT", tc.raw)
		if got := EnvFloat("CONSENT_TEST_FLOAT", 2); got != tc.want {
			t.Fatalf("EnvFloat(%q)=%v want=%v", tc.raw, got, tc.want)
		}
	}
}
