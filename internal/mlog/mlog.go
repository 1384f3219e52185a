// Package mlog is a small structured logger, trimmed from mediocre-go-lib's
// mlog package down to what a single server process needs: leveled
// messages, JSON-encoded, carrying whatever internal/mctx annotations are
// on the Context passed to each call.
package mlog

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mediocregopher/mredis/internal/mctx"
)

func annotationsOf(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	return mctx.StringMap(ctx)
}

// Level describes the severity of a logged message.
type Level int

// Predefined levels, least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

type record struct {
	Time        string            `json:"time"`
	Level       string            `json:"level"`
	Description string            `json:"descr"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Logger writes leveled, structured log records to an io.Writer. All methods
// are safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	enc      *json.Encoder
	maxLevel Level
	now      func() time.Time
}

// New returns a Logger writing JSON records to out, logging at LevelInfo and
// above.
func New(out io.Writer) *Logger {
	return &Logger{
		out:      out,
		enc:      json.NewEncoder(out),
		maxLevel: LevelInfo,
		now:      time.Now,
	}
}

// Stderr is the default process-wide Logger, writing to os.Stderr.
var Stderr = New(os.Stderr)

// SetMinLevel adjusts which levels are actually written; messages below
// this severity (i.e. with a lower Level constant) are dropped. Note the
// constants above run from least to most severe in ascending numeric order,
// matching Go's common zero-value-is-common-case convention: LevelDebug is
// the most verbose.
func (l *Logger) SetMinLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxLevel = lvl
}

func (l *Logger) log(ctx context.Context, lvl Level, descr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lvl < l.maxLevel {
		return
	}

	rec := record{
		Time:        l.now().UTC().Format(time.RFC3339Nano),
		Level:       lvl.String(),
		Description: descr,
		Annotations: annotationsOf(ctx),
	}
	// A logging failure must never take down the connection that triggered
	// it; best-effort only.
	_ = l.enc.Encode(rec)

	if lvl == LevelFatal {
		os.Exit(1)
	}
}

// Debug logs a LevelDebug message.
func (l *Logger) Debug(ctx context.Context, descr string) { l.log(ctx, LevelDebug, descr) }

// Info logs a LevelInfo message.
func (l *Logger) Info(ctx context.Context, descr string) { l.log(ctx, LevelInfo, descr) }

// Warn logs a LevelWarn message.
func (l *Logger) Warn(ctx context.Context, descr string) { l.log(ctx, LevelWarn, descr) }

// Error logs a LevelError message.
func (l *Logger) Error(ctx context.Context, descr string) { l.log(ctx, LevelError, descr) }

// Fatal logs a LevelFatal message and terminates the process.
func (l *Logger) Fatal(ctx context.Context, descr string) { l.log(ctx, LevelFatal, descr) }
