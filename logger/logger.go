// Package logger wraps a process-wide zerolog logger.
//
// Logs go to stderr so that stdout stays reserved for progress output.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Level is one of trace, debug, info, warn, error, disabled.
	Level string
	// Format is "console" for human-readable output, anything else for JSON.
	Format string
	// RunID is attached to every entry when set.
	RunID  string
	Output io.Writer
}

var (
	defaultLogger zerolog.Logger
	mu            sync.RWMutex
)

func init() {
	initLogger(Config{Level: "info", Format: "console"})
}

// Init configures the default logger. It may be called more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	zctx := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.RunID != "" {
		zctx = zctx.Str("run_id", cfg.RunID)
	}
	defaultLogger = zctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Default returns the default logger instance
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// With returns a context for building a child logger with extra fields
func With() zerolog.Context {
	return Default().With()
}

func Debug() *zerolog.Event {
	return Default().Debug()
}

func Info() *zerolog.Event {
	return Default().Info()
}

func Warn() *zerolog.Event {
	return Default().Warn()
}

func Error() *zerolog.Event {
	return Default().Error()
}
