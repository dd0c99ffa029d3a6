// Package logging builds the zap loggers used by the litclock binaries.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger output.
type Config struct {
	// Verbose enables debug level.
	Verbose bool
	// Path, when set, sends logs to that file instead of stderr. The TUI
	// uses this so the alternate screen stays clean.
	Path string
}

// New builds a production JSON logger. The returned cleanup syncs it.
func New(cfg Config) (*zap.Logger, func(), error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		zcfg.OutputPaths = []string{cfg.Path}
		zcfg.ErrorOutputPaths = []string{cfg.Path}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// DefaultPath returns ~/.local/state/litclock/litclock.log, or "" when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "litclock", "litclock.log")
}

// NewFileOrNop logs to path, falling back to a no-op logger when the file
// cannot be opened.
func NewFileOrNop(path string, verbose bool) (*zap.Logger, func()) {
	if path == "" {
		return zap.NewNop(), func() {}
	}
	logger, cleanup, err := New(Config{Verbose: verbose, Path: path})
	if err != nil {
		return zap.NewNop(), func() {}
	}
	return logger, cleanup
}
