// Package logger provides structured logging for promoscout.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	mu            sync.RWMutex
)

func init() {
	defaultLogger = slog.New(newHandler(Options{}))
}

// Options configures the logger.
type Options struct {
	Debug  bool         // debug level
	Quiet  bool         // errors only; wins over Debug
	JSON   bool         // JSON records instead of key=value text
	Output io.Writer    // default stderr
	Logger *slog.Logger // used as is, all other fields ignored
}

func (o Options) level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelError
	case o.Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func newHandler(o Options) slog.Handler {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: o.level(), ReplaceAttr: redact}
	if o.JSON {
		return slog.NewJSONHandler(out, ho)
	}
	return slog.NewTextHandler(out, ho)
}

// Init replaces the package logger according to opts. Loggers returned by
// Component before the call follow the new configuration.
func Init(opts Options) {
	l := opts.Logger
	if l == nil {
		l = slog.New(newHandler(opts))
	}
	SetLogger(l)
}

// SetLogger replaces the package logger, for embedding the harvester in an
// application with its own slog setup.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Default returns the current package logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Component returns a child logger tagged with the component name.
//
// The handler is resolved on every call, so components created before Init
// still pick up the configured output.
func Component(name string) *slog.Logger {
	return slog.New((&lazyHandler{}).WithAttrs([]slog.Attr{slog.String("component", name)}))
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// sensitiveKeys are attribute keys, or key suffixes after an underscore,
// whose values are always replaced.
var sensitiveKeys = []string{"password", "secret", "api_key", "apikey", "token", "authorization", "cookie"}

// redact masks attributes whose key names a credential. Credentials values
// redact themselves; this catches plain strings logged under such keys.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if key == s || strings.HasSuffix(key, "_"+s) {
			return slog.String(a.Key, "[redacted]")
		}
	}
	return a
}

// lazyHandler forwards to the package logger's handler at log time,
// replaying the attrs and groups added since.
type lazyHandler struct {
	ops []func(slog.Handler) slog.Handler
}

func (h *lazyHandler) target() slog.Handler {
	target := Default().Handler()
	for _, op := range h.ops {
		target = op(target)
	}
	return target
}

func (h *lazyHandler) with(op func(slog.Handler) slog.Handler) *lazyHandler {
	ops := make([]func(slog.Handler) slog.Handler, 0, len(h.ops)+1)
	ops = append(ops, h.ops...)
	return &lazyHandler{ops: append(ops, op)}
}

func (h *lazyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Default().Handler().Enabled(ctx, level)
}

func (h *lazyHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *lazyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

func (h *lazyHandler) WithGroup(name string) slog.Handler {
	return h.with(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}
