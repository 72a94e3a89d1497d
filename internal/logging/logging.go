// Package logging provides structured logging for the core daemon using
// log/slog, with a rotating file sink for long-running processes.
package logging

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu           sync.RWMutex
	base         *slog.Logger
	fileCloser   io.Closer
	currentLevel = new(slog.LevelVar)
	initOnce     sync.Once
)

// replaceAttr normalizes level names and truncates float attributes so that
// log lines stay compact and greppable.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			if name, exists := levelNames[level]; exists {
				a.Value = slog.StringValue(name)
			}
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		a.Value = slog.Float64Value(math.Trunc(a.Value.Float64()*1000) / 1000.0)
	}
	return a
}

// Config controls where Init sends log output.
type Config struct {
	Path       string // file to rotate logs into; empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
	ToStderr   bool // also mirror logs to stderr, as the same JSON records
}

// Init sets up the process-wide logger. It MUST run before any task is
// spawned — it is the only legitimate global mutable state in the daemon.
func Init(cfg Config) {
	initOnce.Do(func() {
		currentLevel.Set(cfg.Level)

		var writers []io.Writer
		if cfg.Path != "" {
			if dir := filepath.Dir(cfg.Path); dir != "." {
				_ = os.MkdirAll(dir, 0o755)
			}
			lj := &lumberjack.Logger{
				Filename:   cfg.Path,
				MaxSize:    orDefault(cfg.MaxSizeMB, 50),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 14),
				Compress:   true,
			}
			fileCloser = lj
			writers = append(writers, lj)
		}

		var out io.Writer = os.Stderr
		if len(writers) > 0 {
			if cfg.ToStderr {
				out = io.MultiWriter(append(writers, os.Stderr)...)
			} else {
				out = io.MultiWriter(writers...)
			}
		}

		handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})

		mu.Lock()
		base = slog.New(handler)
		mu.Unlock()
		slog.SetDefault(base)
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetLevel adjusts the global minimum log level at runtime.
func SetLevel(level slog.Level) { currentLevel.Set(level) }

// ParseLevel maps a config string ("trace", "debug", "info", "warn",
// "error", "fatal") to its slog.Level, defaulting to Info for anything
// else so a typo in config.yaml never prevents startup.
func ParseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// Close flushes and closes the rotating file sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileCloser != nil {
		return fileCloser.Close()
	}
	return nil
}

// ForComponent returns a logger tagged with "component", the unit every
// subsystem (graph, computing bus, thermal regulator, daemon) uses to
// identify itself in structured log lines.
func ForComponent(name string) *slog.Logger {
	mu.RLock()
	logger := base
	mu.RUnlock()
	if logger == nil {
		Init(Config{Level: slog.LevelInfo})
		mu.RLock()
		logger = base
		mu.RUnlock()
	}
	return logger.With("component", name)
}

// Trace logs at the custom trace level on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// Fatal logs at the custom fatal level then exits the process.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// WithErr is a small helper used throughout the daemon to attach an error
// under the conventional "error" attribute key.
func WithErr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", fmt.Sprintf("%v", err))
}
