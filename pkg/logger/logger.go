// Package logger is a small zerolog front end with typed fields. Warnings and
// errors can additionally be aggregated by a LogCollector and shipped as digests.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string // defaults to RFC3339Nano
}

// Logger writes structured entries. Children made by With share the parent's collector slot,
// so attaching or detaching a collector affects the whole tree.
type Logger struct {
	zl        zerolog.Logger
	collector *atomic.Pointer[LogCollector]
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(4).Logger()
	return wrap(zl), nil
}

// NewWithWriter builds a JSON logger on w at debug level.
func NewWithWriter(w io.Writer) *Logger {
	return wrap(zerolog.New(w).With().Timestamp().Logger())
}

// Nop discards everything.
func Nop() *Logger {
	return wrap(zerolog.Nop())
}

func wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl, collector: new(atomic.Pointer[LogCollector])}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write(l.zl.Warn(), msg, fields)
	l.collect(zerolog.WarnLevel, msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect(zerolog.ErrorLevel, msg, fields)
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = f.applyContext(c)
	}
	return &Logger{zl: c.Logger(), collector: l.collector}
}

// AddCollector starts aggregating warnings and errors; a previous collector is closed.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	if old := l.collector.Swap(NewLogCollector(cfg)); old != nil {
		old.Close()
	}
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if old := l.collector.Swap(nil); old != nil {
		old.Close()
	}
}

func (l *Logger) write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.applyEvent(e)
	}
	e.Msg(msg)
}

func (l *Logger) collect(level zerolog.Level, msg string, fields []Field) {
	c := l.collector.Load()
	if c == nil {
		return
	}
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Key()] = f.Value()
	}
	c.AddLog(level.String(), msg, values, callerOf(3))
}

// callerOf renders the call site skip frames up as "dir/file.go:line".
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)) + ":" + strconv.Itoa(line)
}
