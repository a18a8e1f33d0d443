package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))
	log.With("session_id", "s1").WithGroup("ws").Info("ws.reject.origin",
		"origin", "http://evil example",
		"status", 403,
		"took", 2*time.Second,
	)

	out := buf.String()
	for _, want := range []string{
		"[INFO]",
		"ws.reject.origin",
		" session_id=s1",
		`ws.origin="http://evil example"`,
		"ws.status=403",
		"ws.took=2s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but output has ANSI codes: %q", out)
	}
}

func TestPrettyHandler_ColorAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))
	log.Info("dropped")
	log.Warn("consent.terminated", "to", "terminated", "reason", "timeout")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record passed warn level: %q", out)
	}
	if !strings.Contains(out, ansiYellow+"[WARN]"+ansiReset) {
		t.Fatalf("warn tag not colored: %q", out)
	}
	if !strings.Contains(out, "to="+ansiRed+"terminated"+ansiReset) {
		t.Fatalf("state not colored: %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        `""`,
		"plain":   "plain",
		"a b":     `"a b"`,
		"k=v":     `"k=v"`,
		`say "x"`: `"say \"x\""`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}
