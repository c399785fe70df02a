// Package logging builds the zerolog logger and adapts it to the service
// Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects the level and output format.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// ParseLevel maps debug, info, warn and error onto zerolog levels. Empty means
// info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}

// New returns a timestamped logger. The console format writes human-readable
// lines through zerolog.ConsoleWriter.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Adapter satisfies the service Logger interface. Arguments after the
// message are read as key/value pairs.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter wraps logger.
func NewAdapter(logger zerolog.Logger) Adapter {
	return Adapter{logger: logger}
}

func (a Adapter) Debug(msg string, kv ...any) { emit(a.logger.Debug(), msg, kv) }
func (a Adapter) Info(msg string, kv ...any)  { emit(a.logger.Info(), msg, kv) }
func (a Adapter) Warn(msg string, kv ...any)  { emit(a.logger.Warn(), msg, kv) }
func (a Adapter) Error(msg string, kv ...any) { emit(a.logger.Error(), msg, kv) }

func emit(event *zerolog.Event, msg string, kv []any) {
	if event == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			event = event.Interface(key, nil)
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			event = event.AnErr(key, v)
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}
