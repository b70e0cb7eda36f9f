package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

// Levels re-exported so callers need not import zerolog.
const (
	LevelTrace Level = zerolog.TraceLevel
	LevelDebug Level = zerolog.DebugLevel
	LevelInfo  Level = zerolog.InfoLevel
	LevelWarn  Level = zerolog.WarnLevel
	LevelError Level = zerolog.ErrorLevel
)

// Logger is a value-type structured logger.
//
// A Logger from Service follows every Service.Apply. The zero value drops
// everything.
type Logger struct {
	owner *Service
	zl    *zerolog.Logger
	bound []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{zl: &zl}
}

// NewConsole creates a standalone console logger on stderr.
func NewConsole(level string) Logger {
	setGlobals()
	return standalone(newConsoleWriter(Stderr()), level)
}

// NewWriter creates a standalone JSON logger writing to w.
func NewWriter(w io.Writer, level string) Logger {
	return standalone(w, level)
}

func standalone(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{zl: &zl}
}

func (l Logger) IsZero() bool { return l.owner == nil && l.zl == nil && len(l.bound) == 0 }

func (l Logger) target() zerolog.Logger {
	if l.owner != nil {
		return l.owner.current()
	}
	if l.zl != nil {
		return *l.zl
	}
	return zerolog.Nop()
}

// Enabled reports whether level would be written.
func (l Logger) Enabled(level Level) bool {
	return level >= l.target().GetLevel()
}

// With returns a child that adds fields to every line.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) > 0 {
		l.bound = append(l.bound[:len(l.bound):len(l.bound)], fields...)
	}
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.logSkip(2, LevelTrace, msg, fields...) }
func (l Logger) Debug(msg string, fields ...Field) { l.logSkip(2, LevelDebug, msg, fields...) }
func (l Logger) Info(msg string, fields ...Field)  { l.logSkip(2, LevelInfo, msg, fields...) }
func (l Logger) Warn(msg string, fields ...Field)  { l.logSkip(2, LevelWarn, msg, fields...) }
func (l Logger) Error(msg string, fields ...Field) { l.logSkip(2, LevelError, msg, fields...) }

// logSkip writes one event; skip counts the frames from logSkip up to the
// user call site.
func (l Logger) logSkip(skip int, level Level, msg string, fields ...Field) {
	zl := l.target()
	ev := zl.WithLevel(level)
	if ev == nil {
		return
	}
	if at := shortCaller(skip + 1); at != "" {
		ev.Str(zerolog.CallerFieldName, at)
	}
	apply(ev, l.bound)
	apply(ev, fields)
	ev.Msg(msg)
}

func apply(ev *zerolog.Event, fields []Field) {
	for _, f := range fields {
		if f != nil {
			f(ev)
		}
	}
}

// shortCaller returns base-file:line for the frame skip levels up.
func shortCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
