package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	amesErrors "github.com/YuminosukeSato/amesprice/pkg/errors"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error. A leading error field is logged under
// "error" with its stack trace.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	event := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			event = event.Stack().Err(err)
			fields = fields[1:]
		}
	}
	l.emit(event, msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(fields); i += 2 {
		key, val := pair(fields, i)
		switch v := val.(type) {
		case zerolog.LogObjectMarshaler:
			ctx = ctx.Object(key, v)
		case error:
			ctx = ctx.AnErr(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &ZerologLogger{zl: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	zlevel := toZerologLevel(level)
	return zlevel >= l.zl.GetLevel() && zlevel >= zerolog.GlobalLevel()
}

func (l *ZerologLogger) emit(event *zerolog.Event, msg string, fields []any) {
	if event == nil {
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, val := pair(fields, i)
		switch v := val.(type) {
		case zerolog.LogObjectMarshaler:
			event = event.Object(key, v)
		case error:
			event = event.AnErr(key, v)
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

// pair returns the key/value at position i; a trailing key without a value
// is reported under "!BADKEY" as slog does.
func pair(fields []any, i int) (string, any) {
	if i+1 >= len(fields) {
		return "!BADKEY", fields[i]
	}
	if key, ok := fields[i].(string); ok {
		return key, fields[i+1]
	}
	return fmt.Sprint(fields[i]), fields[i+1]
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, amesErrors.NewValidationError("log_level", "must be one of debug, info, warn, error", s)
	}
}

// zerologProvider is the process-wide LoggerProvider.
type zerologProvider struct {
	mu   sync.RWMutex
	root zerolog.Logger
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{zl: p.root}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{zl: p.root.With().Str(ComponentKey, name).Logger()}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = p.root.Level(toZerologLevel(level))
}

func (p *zerologProvider) setRoot(root zerolog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = root
}

var provider = &zerologProvider{
	root: zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
// Loggers obtained before SetupLogger keep the previous configuration.
func GetLoggerWithName(name string) Logger {
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the minimum level for loggers created after the call.
func SetLevel(level Level) {
	provider.SetLevel(level)
}

// SetupLogger configures the default provider to write to stderr.
// format is "json" or "console".
func SetupLogger(level, format string) error {
	return SetupLoggerTo(os.Stderr, level, format)
}

// SetupLoggerTo configures the default provider to write to w. It also
// routes pkg/errors warnings into the log at warn level.
func SetupLoggerTo(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	out := w
	switch strings.ToLower(format) {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return amesErrors.NewValidationError("log_format", "must be json or console", format)
	}

	zerolog.ErrorStackMarshaler = stackMarshaler
	provider.setRoot(zerolog.New(out).With().Timestamp().Logger().Level(toZerologLevel(lvl)))

	warnLogger := GetLoggerWithName("warnings")
	amesErrors.SetWarningHandler(func(w error) {
		warnLogger.Warn(w.Error(), "warning", w)
	})
	return nil
}
