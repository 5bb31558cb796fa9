package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupRespectsLevel(t *testing.T) {
	Setup(Config{Format: "json", Level: "warn"})
	if slog.Default().Enabled(nil, slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !slog.Default().Enabled(nil, slog.LevelWarn) {
		t.Error("warn disabled at warn level")
	}

	// Restore a permissive default for other tests in the binary.
	Setup(Config{Format: "text", Level: "info"})
}
