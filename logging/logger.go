// Package logging provides a tiny abstraction over slog so the rest of the
// module can depend on a minimal interface (Logger) while callers plug in any
// structured logger. It also offers a richer LoomLogger with contextual
// helpers (session, agent, component) and domain helpers for steps, oracle
// round-trips and tool invocations.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the minimal structured logging interface threaded through the
// engine. args are alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct{ *slog.Logger }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(l *slog.Logger) Logger { return &SlogAdapter{Logger: l} }

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger { return NewSlogAdapter(slog.Default()) }

// Config configures construction of a LoomLogger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns a JSON handler at info level writing to stdout.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// LoomLogger wraps slog adding cheap contextual cloning helpers plus domain
// helpers. Copies produced by the With* methods share the handler.
type LoomLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
	agentID   string
}

var _ Logger = (*LoomLogger)(nil)

// New builds a LoomLogger from cfg (or defaults when nil).
func New(cfg *Config) *LoomLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &LoomLogger{logger: slog.New(handler)}
}

// WithComponent returns a copy tagged with the logical component name.
func (l *LoomLogger) WithComponent(c string) *LoomLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession returns a copy tagged with the session id.
func (l *LoomLogger) WithSession(sessionID string) *LoomLogger {
	nl := *l
	nl.sessionID = sessionID
	return &nl
}

// WithAgent returns a copy tagged with the agent id.
func (l *LoomLogger) WithAgent(agentID string) *LoomLogger {
	nl := *l
	nl.agentID = agentID
	return &nl
}

func (l *LoomLogger) attrs(extra []any) []any {
	args := make([]any, 0, len(extra)+6)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if l.sessionID != "" {
		args = append(args, "session_id", l.sessionID)
	}
	if l.agentID != "" {
		args = append(args, "agent_id", l.agentID)
	}
	return append(args, extra...)
}

// Debug logs at debug level.
func (l *LoomLogger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, l.attrs(args)...)
}

// Info logs at info level.
func (l *LoomLogger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, l.attrs(args)...)
}

// Warn logs at warn level.
func (l *LoomLogger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, l.attrs(args)...)
}

// Error logs at error level.
func (l *LoomLogger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, l.attrs(args)...)
}

// LogStep records the outcome of one agent step.
func (l *LoomLogger) LogStep(tailKind string, status string, dur time.Duration) {
	l.Info("agent step", "tail_kind", tailKind, "status", status, "duration", dur)
}

// LogOracleCall records an oracle round-trip.
func (l *LoomLogger) LogOracleCall(model string, dur time.Duration, isError bool, errMsg string) {
	if isError {
		l.Error("oracle call failed", "model", model, "duration", dur, "error", errMsg)
		return
	}
	l.Info("oracle call completed", "model", model, "duration", dur)
}

// LogToolCall records a tool invocation.
func (l *LoomLogger) LogToolCall(tool, callID string, dur time.Duration, isError bool) {
	if isError {
		l.Warn("tool call failed", "tool", tool, "call_id", callID, "duration", dur)
		return
	}
	l.Info("tool call completed", "tool", tool, "call_id", callID, "duration", dur)
}
