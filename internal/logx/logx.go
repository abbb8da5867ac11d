// Package logx provides the process-wide structured logger for icsd.
//
// A package-level *zap.SugaredLogger is safe to use before Initialize (a
// no-op logger), with a calm human-readable console encoder for
// interactive use and a JSON encoder for daemon/production use, switched
// by ICS_CONSOLE_LOG.
package logx

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance. Safe to call before Initialize.
var Logger = zap.NewNop().Sugar()

// JSONOutput reports whether the global logger is emitting JSON.
var JSONOutput bool

// level is shared by every encoder so set_log_level can change verbosity
// on a running process without rebuilding cores.
var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// Initialize sets up the global logger. jsonOutput forces JSON regardless
// of environment; when false, ICS_CONSOLE_LOG=json still forces JSON so a
// process supervisor can capture structured logs from stdout.
func Initialize(jsonOutput bool) error {
	if !jsonOutput {
		jsonOutput = strings.EqualFold(os.Getenv("ICS_CONSOLE_LOG"), "json")
	}
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.OutputPaths = []string{"stdout"}
		zapLogger, err = cfg.Build()
	} else {
		zapLogger = zap.New(zapcore.NewCore(
			newMinimalEncoder(),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}
	if err != nil {
		return err
	}
	Logger = zapLogger.Sugar()
	return nil
}

// SetLevel parses name ("debug", "info", "warn", "error") and applies
// it to the shared atomic level, affecting every already-constructed
// sub-logger immediately.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Named returns a child logger scoped to the given component name, the way
// every engine subsystem (resource, poll, alert, rpc, ...) tags its log
// lines.
func Named(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Sync flushes any buffered log entries. Errors from Sync on stdout/stderr
// are routine on Linux/macOS and can be ignored by callers.
func Sync() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}
