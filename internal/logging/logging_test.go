package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rifas-mx/rifas/internal/config"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "raffle_id", "r1")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, `"raffle_id":"r1"`) {
		t.Fatalf("expected json record, got %q", out)
	}

	if _, err := New(&buf, config.LogConfig{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := New(&buf, config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "ERROR": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
