package sharkfs

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with sharkfs-specific helpers so operations
// log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogMount logs activation of an image.
func (l *Logger) LogMount(path string, nBlocks uint32, formatted bool) {
	op := "mount"
	if formatted {
		op = "format"
	}
	l.Info("image activated",
		"op", op,
		"path", path,
		"blocks", nBlocks,
	)
}

// LogUnmount logs deactivation of an image.
func (l *Logger) LogUnmount(path string, err error) {
	if err != nil {
		l.Error("unmount failed", "path", path, "error", err)
	} else {
		l.Info("image deactivated", "path", path)
	}
}

// LogWrite logs a write operation.
func (l *Logger) LogWrite(fd FD, n int, err error) {
	if err != nil {
		l.Error("write failed", "fd", int(fd), "len", n, "error", err)
	} else {
		l.Debug("write completed", "fd", int(fd), "len", n)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(name string, err error) {
	if err != nil {
		l.Debug("remove failed", "name", name, "error", err)
	} else {
		l.Debug("remove completed", "name", name)
	}
}
