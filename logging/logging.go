// Package logging implements the Logging & Feature Detection component: a
// small Adapter interface in front of structured logging, plus a registry
// recording which optional SCXML dialect features a build supports.
//
// No teacher/pack file implements a level-gated logging adapter directly
// (the teacher's internal/extensibility/actionrunner.go's
// LoggingActionRunner calls the standard library's log.Printf unguarded),
// so the Adapter interface and its zap-backed production implementation
// are grounded on the pack's broader convention of wrapping zap behind a
// small seam (seen in AKJUS-bsc-erigon and agentflare-ai-agentml-go, both
// of which construct a *zap.Logger once and pass it down rather than
// calling the global logger). See DESIGN.md for the full justification.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity, ordered trace < debug < info < warn < error.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Adapter is the logging seam the engine and actions write through. It
// never panics and never blocks: a logging failure must not affect
// interpretation.
type Adapter interface {
	Log(level Level, message string, metadata map[string]any)
	Enabled(level Level) bool
}

// zapAdapter is the production Adapter, backed by a *zap.Logger.
type zapAdapter struct {
	logger *zap.Logger
	min    Level
}

// NewZapAdapter wraps logger as an Adapter, suppressing anything below
// min. Pass zap.NewNop() in tests that don't care about log output.
func NewZapAdapter(logger *zap.Logger, min Level) Adapter {
	return &zapAdapter{logger: logger, min: min}
}

func (a *zapAdapter) Enabled(level Level) bool {
	return level >= a.min
}

func (a *zapAdapter) Log(level Level, message string, metadata map[string]any) {
	if !a.Enabled(level) {
		return
	}
	fields := make([]zap.Field, 0, len(metadata))
	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}
	switch level {
	case Trace, Debug:
		a.logger.Debug(message, fields...)
	case Info:
		a.logger.Info(message, fields...)
	case Warn:
		a.logger.Warn(message, fields...)
	case Error:
		a.logger.Error(message, fields...)
	}
}

// zapLevel maps a Level to zapcore.Level, used when constructing a
// production logger core from a minimum Level.
func zapLevel(l Level) zapcore.Level {
	switch l {
	case Trace, Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// NewProductionAdapter builds a zap production logger gated at min.
func NewProductionAdapter(min Level) (Adapter, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(min))
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapAdapter(logger, min), nil
}

// Entry is one recorded log call, captured by MemoryAdapter for tests.
type Entry struct {
	Level    Level
	Message  string
	Metadata map[string]any
}

// MemoryAdapter is an in-memory ring-buffer Adapter for tests, grounded on
// the pack's general pattern of a bounded-capacity recorder (capacity
// limits memory growth across long-running conformance suites) rather
// than an ever-growing slice.
type MemoryAdapter struct {
	entries  []Entry
	capacity int
	min      Level
}

// NewMemoryAdapter constructs a MemoryAdapter retaining at most capacity
// entries (oldest dropped first).
func NewMemoryAdapter(capacity int, min Level) *MemoryAdapter {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryAdapter{capacity: capacity, min: min}
}

func (a *MemoryAdapter) Enabled(level Level) bool {
	return level >= a.min
}

func (a *MemoryAdapter) Log(level Level, message string, metadata map[string]any) {
	if !a.Enabled(level) {
		return
	}
	a.entries = append(a.entries, Entry{Level: level, Message: message, Metadata: metadata})
	if len(a.entries) > a.capacity {
		a.entries = a.entries[len(a.entries)-a.capacity:]
	}
}

// Entries returns every retained entry, oldest first.
func (a *MemoryAdapter) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Reset clears every retained entry.
func (a *MemoryAdapter) Reset() {
	a.entries = nil
}
