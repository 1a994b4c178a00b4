// Package logger provides process-wide logging for the SSPI engine.
// Messages are printf-style and written through zap. Debug output is
// emitted only in verbose mode; info, warnings and errors are always
// written. An optional rotating log file can be attached with Configure.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	file    io.Writer
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base    *zap.Logger
)

func init() {
	rebuild()
}

// Config controls the optional file sink and the minimum level.
type Config struct {
	// Level is one of debug, info, warn, error. Empty keeps the current level.
	Level string

	// File enables a rotating log file when set.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Configure applies cfg. It may be called more than once.
func Configure(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if cfg.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level.SetLevel(lvl)
		verbose = lvl <= zapcore.DebugLevel
	}

	file = nil
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
	}
	rebuild()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// rebuild recreates the zap logger. Caller must hold mu.
func rebuild() {
	ws := zapcore.AddSync(output)
	if file != nil {
		ws = zapcore.NewMultiWriteSyncer(ws, zapcore.AddSync(file))
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), ws, level)
	base = zap.New(core)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// SetVerbose enables or disables verbose (debug) logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the console writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Zap returns the underlying structured logger.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered log entries.
func Sync() error {
	return Zap().Sync()
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	Zap().Debug(fmt.Sprintf(format, args...))
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	Zap().Debug(fmt.Sprintf("=== %s ===", name))
}

// Info logs an informational message.
func Info(format string, args ...any) {
	Zap().Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	Zap().Warn(fmt.Sprintf(format, args...))
}

// Error logs an error.
func Error(format string, args ...any) {
	Zap().Error(fmt.Sprintf(format, args...))
}
