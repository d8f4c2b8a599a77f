package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "FWUPDCTL_LOG_LEVEL"
	EnvLogTimestamp = "FWUPDCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "FWUPDCTL_LOG_NOCOLOR"
	EnvLogJSON      = "FWUPDCTL_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Settings is the resolved logger setup for a profile.
type Settings struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	JSON      bool
}

type envOverrides struct {
	Level     string `env:"FWUPDCTL_LOG_LEVEL"`
	Timestamp string `env:"FWUPDCTL_LOG_TIMESTAMP"`
	NoColor   string `env:"FWUPDCTL_LOG_NOCOLOR"`
	JSON      string `env:"FWUPDCTL_LOG_JSON"`
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the process-wide zerolog logger once.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		s := DefaultSettings(profile)
		applyEnvOverrides(&s)
		zerolog.SetGlobalLevel(s.Level)
		log.Logger = New(os.Stderr, s)
	})
}

func DefaultSettings(profile Profile) Settings {
	switch profile {
	case ProfileTest:
		return Settings{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Settings{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// New builds a logger writing to w with the given settings.
func New(w io.Writer, s Settings) zerolog.Logger {
	out := w
	if !s.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    s.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(out).Level(s.Level).With()
	if s.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func applyEnvOverrides(s *Settings) {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return
	}
	if lvl, ok := parseLevel(raw.Level); ok {
		s.Level = lvl
	}
	if v, ok := parseBool(raw.Timestamp); ok {
		s.Timestamp = v
	}
	if v, ok := parseBool(raw.NoColor); ok {
		s.NoColor = v
	}
	if v, ok := parseBool(raw.JSON); ok {
		s.JSON = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
