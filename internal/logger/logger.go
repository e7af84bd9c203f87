// Package logger is a thin zerolog facade that keeps the call-site shape of
// the teacher's own logger (Level enum, Info/Debug/Warn/Error, a package
// default) but backs it with structured logging: every line can carry an
// operation id field so it correlates with temp paths and progress events.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level mirrors the teacher's enum for call-site compatibility.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger wraps a zerolog.Logger and adds the OperationId most pipeline
// components want attached to every line.
type Logger struct {
	mu  sync.Mutex
	zl  zerolog.Logger
}

var (
	defaultMu     sync.Mutex
	defaultLogger = New(LevelInfo, os.Stdout, false)
)

// New builds a Logger. pretty=true renders a human console writer (dev use);
// pretty=false emits JSON lines (production/CI use).
func New(level Level, w io.Writer, pretty bool) *Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(level.zerolog())
	return &Logger{zl: zl}
}

// Configure replaces the process-wide default logger, e.g. from CLI flags.
func Configure(level Level, w io.Writer, pretty bool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(level, w, pretty)
}

// WithOp returns a child logger that tags every line with the run's
// OperationId (spec §3, §5).
func (l *Logger) WithOp(opID string) *Logger {
	return &Logger{zl: l.zl.With().Str("op_id", opID).Logger()}
}

func (l *Logger) Debug(msg string, kv ...any) { event(l.zl.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { event(l.zl.Info(), msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { event(l.zl.Warn(), msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { event(l.zl.Error(), msg, kv) }

func event(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

// WithOp tags the default logger with an operation id.
func WithOp(opID string) *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger.WithOp(opID)
}

func Debug(msg string, kv ...any) { defaultLogger.Debug(msg, kv...) }
func Info(msg string, kv ...any)  { defaultLogger.Info(msg, kv...) }
func Warn(msg string, kv ...any)  { defaultLogger.Warn(msg, kv...) }
func Error(msg string, kv ...any) { defaultLogger.Error(msg, kv...) }
