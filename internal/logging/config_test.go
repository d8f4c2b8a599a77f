package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"off":      zerolog.Disabled,
		"trace":    zerolog.TraceLevel,
		"error":    zerolog.ErrorLevel,
		"inactive": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) = %v, %v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogTimestamp, "nope")

	s := DefaultSettings(ProfileRuntime)
	applyEnvOverrides(&s)
	if s.Level != zerolog.ErrorLevel {
		t.Fatalf("expected error level, got %v", s.Level)
	}
	if !s.JSON {
		t.Fatalf("expected json output")
	}
	if !s.Timestamp {
		t.Fatalf("invalid bool must keep the profile default")
	}
}

func TestNewJSONLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Settings{Level: zerolog.WarnLevel, JSON: true})
	logger.Info().Msg("hidden")
	logger.Warn().Str("device", "gpu0").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, `"device":"gpu0"`) {
		t.Fatalf("expected structured field, got %s", out)
	}
}
