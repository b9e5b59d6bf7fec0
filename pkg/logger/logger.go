// Package logger builds the structured zerolog.Logger used across the engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // enable human-readable console output
}

// New creates a new structured logger with a UTC RFC3339 timestamp and
// caller information attached to every event.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger sets the package-level zerolog logger, used by library
// code that logs via the global log.Logger rather than a threaded instance.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}

// Throttled wraps a logger so that a given key logs at most once per window.
// Used for PersistenceError and similar degraded-mode warnings that would
// otherwise spam the log on every tick (spec §7: "at most once per 5s").
type Throttled struct {
	log    zerolog.Logger
	window time.Duration
	last   map[string]time.Time
}

// NewThrottled creates a throttled logger wrapper around l.
func NewThrottled(l zerolog.Logger, window time.Duration) *Throttled {
	return &Throttled{log: l, window: window, last: make(map[string]time.Time)}
}

// Warn logs a warning for key at most once per window, returning true if it
// actually logged (callers use this to decide whether to also bump a metric).
func (t *Throttled) Warn(key, msg string, err error) bool {
	now := time.Now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	t.log.Warn().Err(err).Str("throttle_key", key).Msg(msg)
	return true
}
