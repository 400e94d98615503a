// Package observability owns logger construction. The CLI layer uses the
// package-level CLILogger; long-running components receive a *zap.Logger
// explicitly.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for command entry points. It defaults
// to a nop logger so packages can log before InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger builds the CLI logger. Verbose switches to development
// encoding with debug level.
func InitCLILogger(name string, verbose bool) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return
	}
	CLILogger = logger.Named(name)
}

// NewLogger builds a structured logger at the given level for server
// components.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}
